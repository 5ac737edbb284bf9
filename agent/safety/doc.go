// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 safety 提供包装内部执行器的安全执行器 SafeExecutor。

# 概述

SafeExecutor 在一次运行中依次执行：准入控制 → 输入校验 → 内部执行器 →
输出校验 → 审计记录。所有协作组件均为可选，缺失时对应步骤直接放行。
拒绝与拦截被转换为 [Result]，只有上下文取消会以 error 返回。

# 核心类型

  - [SafeExecutor]：执行入口，提供 Run / Execute / Close
  - [InnerExecutor]：被包装的执行器接口，[ExecutorFunc] 为函数适配
  - [Result]：面向调用方的运行结果，Status 取 success / failed / blocked / rate_limited

# 装配

[New] 通过 Option 注入准入控制器、校验管道、审计日志、指标、追踪与
Token 计数器；[NewFromConfig] 按 config.Config 一次性装配全部组件，
包括审计 sink 与审核服务。

# 可观测性

每次运行生成 run id，并创建 OpenTelemetry span "agentguard.run"，按阶段
添加事件。日志统一带 component=safe_executor 字段。
*/
package safety
