// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 为审计表 guard_audit_records 提供版本化 Schema 迁移，
支持 PostgreSQL 与 MySQL，基于 golang-migrate 实现。

# 概述

本包通过 embed.FS 内嵌各方言的 SQL 迁移文件，结合 golang-migrate
引擎执行正向迁移与回滚。SQLite 不提供版本化迁移，审计表由 GORM
AutoMigrate 维护。

# 核心类型

  - Migrator：封装 golang-migrate 实例与独立数据库连接，提供
    Up/Down/Version/Status/Close。
  - Runner：CLI 依赖的最小操作集合，便于测试替身。
  - CLI：命令行交互层，输出格式化的迁移结果。

# 辅助函数

  - ConfigFromDatabase：由 config.DatabaseConfig 生成迁移配置。
  - ParseDialect / BuildDatabaseURL：方言解析与连接 URL 拼接。
  - Available：列出内嵌迁移文件。
*/
package migration
