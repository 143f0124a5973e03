// Package config 提供 FirmRetr 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（FIRMRETR_ 前缀）的顺序叠加，
// 并提供到 retry.Policy、voting.Config、pool.Config 的转换。
package config
