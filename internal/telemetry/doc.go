// Package telemetry 封装 OpenTelemetry 追踪 SDK 初始化逻辑，
// 为 SafeExecutor 的运行 span 提供 OTLP 导出。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
