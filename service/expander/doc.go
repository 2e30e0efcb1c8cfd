// Package expander turns a batch into builds.  Every call walks candidates from
// the batch cursor and stops at the first build the hook accepts.
package expander
