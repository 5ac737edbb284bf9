// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的守卫决策指标采集能力，覆盖
执行、准入、校验与审计四个维度。

# 概述

Collector 通过 promauto.With 注册到调用方传入的 Registerer，
测试可使用独立的 prometheus.Registry，生产默认注册到全局 Registry。
所有指标按 namespace 隔离。

# 主要指标

  - runs_total / run_duration_seconds：按最终状态分组的执行计数与耗时。
  - admission_denied_total：按拒绝原因分组。
  - admission_tokens_charged_total：计入会话配额的 Token 总数。
  - validation_blocked_total：按阶段与校验器分组的拦截计数。
  - validation_issues_total：按问题类型与严重级别分组。
  - audit_dropped_total：队列已满或已关闭时未送达 sink 的审计记录。

nil Collector 的方法均为空操作，调用方无需判空。
*/
package metrics
