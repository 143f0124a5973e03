// Package pool 提供有界并发的批量调度器：每个条目一个任务，
// 单个任务的错误或 panic 只记录在该条目上，不影响其他条目。
package pool
