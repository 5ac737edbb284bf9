// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package audit 提供带脱敏的有界审计日志。

# 概述

Trail 在内存中保存最近的审计记录，容量满后淘汰最旧的一条。
写入前按字段策略脱敏：关闭记录的字段替换为 [REDACTED]，
超长内容截断并追加 ...[TRUNCATED]。

# 核心接口

  - Trail：内存环形缓冲，支持按 Filter 查询（最新在前）
  - Sink：持久化导出接口，经有界队列异步写入，队列满时丢弃并计数
  - FileSink：按天与大小轮转的 JSON Lines 文件
  - GormSink：通过 internal/database 写入 guard_audit_records 表
  - RedisSink：全局与按调用方划分的定长列表

Log 从不阻塞调用方，也不返回错误；sink 写入失败只记录日志。
*/
package audit
