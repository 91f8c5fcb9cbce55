package service

import "errors"

// ==================== 错误定义 ====================

var (
	// ErrInvalidTransition 请求的阶段变更不在合法迁移表中，单次操作级失败，不重试
	ErrInvalidTransition = errors.New("非法的阶段迁移")

	// ErrConcurrentModification 同一商品上的并发变更竞争失败，调用方可重试
	ErrConcurrentModification = errors.New("商品正在被其它操作修改")

	// ErrClassificationFailure 单个候选分类失败，降级为人工审核，不影响整批
	ErrClassificationFailure = errors.New("商品分类失败")

	// ErrSourceFetchFailure 来源拉取失败，仅中止当前批次
	ErrSourceFetchFailure = errors.New("目录源拉取失败")

	// ErrInvalidRuleConfig 规则配置非法，写入时拒绝
	ErrInvalidRuleConfig = errors.New("规则配置非法")

	// ErrDuplicateExternalID 持久层唯一索引兜底命中，按跳过处理
	ErrDuplicateExternalID = errors.New("外部 ID 已存在")

	// ErrReasonRequired 拒绝操作必须携带非空原因
	ErrReasonRequired = errors.New("拒绝操作必须填写原因")

	// ErrRecordNotFound 商品记录不存在
	ErrRecordNotFound = errors.New("商品记录不存在")

	// ErrDeleteNotAllowed 仅 rejected 状态的记录允许人工永久删除
	ErrDeleteNotAllowed = errors.New("仅已拒绝的记录允许删除")
)
