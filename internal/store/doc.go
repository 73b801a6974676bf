// Package store defines interfaces for meeting, card, series and activity
// persistence. These interfaces keep the lifecycle services independent of
// the database technology; every store exposes WithTx so services can group
// writes with RunInTransaction.
package store
