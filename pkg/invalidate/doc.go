// Package invalidate keeps the data module cache coherent during an
// interactive session.
//
// A [Watcher] turns file system notifications into calls to
// [Controller.Handle], which invalidates the changed data module and decides
// whether a full reload is required: it is whenever at least one rule reads
// the changed file. Reload decisions are broadcast to subscribers as
// [EventReload] values.
package invalidate
