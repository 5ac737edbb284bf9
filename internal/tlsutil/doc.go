// Package tlsutil 提供集中式客户端 TLS 配置，
// 为内容审核 HTTP 客户端与 Redis 审计 sink 提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件），
// 并支持自定义 CA 文件与 ServerName。
package tlsutil
