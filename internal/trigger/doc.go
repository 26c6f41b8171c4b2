// Package trigger turns external signals into invocation keys.
//
// Two sources are supported and may run side by side:
//
//   - Inbox: an fsnotify watcher over the fs source root. A .csv file that
//     is created or written, then left alone for the settle interval, is
//     handed over by its key relative to the root. New sub-directories are
//     watched as they appear.
//   - NATS: a queue subscription whose payload is either an S3 event
//     notification (Records[0].s3.object.key, URL-encoded with '+' for
//     spaces), a JSON object {"key": "..."}, or the bare key as text.
//
// Handlers are called one at a time per source.
package trigger
