// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 moderation 提供内容审核服务适配，供 guardrails 的 ContentModerator 调用。

# 核心接口

  - ModerationProvider：审核提供者接口，包含 Name 与 Moderate 两个方法。
  - OpenAIProvider：调用 OpenAI /moderations 接口。
  - ProviderOracle：把审核提供者适配为分类服务，只提交提示词中被
    三引号包围的内容，并把标记结果渲染为 {allowed, categories, reason} JSON。
  - ChatOracle：把完整提示词发往兼容 OpenAI 的 /chat/completions 接口，
    原样返回模型回复。

# 错误约定

HTTP 4xx/5xx 返回 ORACLE_UNAVAILABLE，回复无法解码返回
MALFORMED_ORACLE_RESPONSE。所有调用均不重试。
*/
package moderation
