// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 guardrails 为执行器提供输入与输出的边界校验能力。

# 概述

guardrails 在执行器运行前校验并改写不可信输入，在结果返回调用方前
校验并改写执行器输出。校验链按注册顺序执行，遇到第一个失败立即返回；
通过的校验器可以改写内容，改写结果会作为后续校验器的输入。

# 核心接口

  - [Validator]：单项校验器接口，提供 Name / Description / Enabled / Check
  - [ModerationOracle]：外部内容分类服务，提供 Classify

# 核心模型

  - [Outcome]：校验结论，包含是否通过、改写后的内容与问题列表
  - [Issue]：单条发现，位置与长度以 rune 计，匹配内容已脱敏
  - [Pipeline]：输入链与输出链，AddInput / AddOutput / CheckInput / CheckOutput

# 内置校验器

  - [MaxLengthValidator]：长度上限
  - [KeywordFilter]：大小写不敏感的关键词拦截
  - [SensitiveDataGuardrail]：基于限时正则的敏感数据检测与脱敏
  - [ContentModerator]：调用外部审核服务分类，支持 fail-open / fail-closed
  - [DomainAllowList]：URL 域名黑白名单

# 错误语义

Check 返回的 error 仅用于传播 context 取消。其它错误被管道转换为
失败关闭的 validator_error 结果；正则超时同样失败关闭（regex_timeout）。
*/
package guardrails
