// Package config 提供 agentguard 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，
// 覆盖护栏、准入控制、审计与指标的全部声明式输入。
// 加载完成后的配置在进程生命周期内只读，护栏与准入组件在启动时一次性构建。
package config
