// Package batchtester runs test payloads against a series of browser builds.
//
// Builds come from three sources: nightly and tinderbox archives, located
// through directory listings and info files, and local compiles of a
// Mercurial checkout. A batch names a range of builds; the engine expands it
// one build at a time, asks the admission hook whether each build should be
// tested, prepares admitted builds on a single helper goroutine and runs the
// hook's tests on a bounded worker pool:
//
//	srv, err := batchtester.New(ctx, args, batchtester.WithConfig(config))
//	if err != nil {
//		return err
//	}
//	defer srv.Close()
//	err = srv.Run(ctx)
//
// With --batch the engine watches a directory and reads one batch
// specification per file until it is stopped. The scheduler state is written
// to --status-file after every tick and can be resumed with --status-resume.
package batchtester
