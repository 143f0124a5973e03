// Package stats 维护每个 app 目录下的统计文档（如 firmproj_stats.json），
// 记录各阶段的耗时与 token 用量。
package stats
