package service

import (
	"context"
	"log"
	"sync"
)

// ==================== 接口定义 ====================

// ExternalIDLister 已入库外部 ID 的来源（由商品仓储实现）
type ExternalIDLister interface {
	ListAllExternalIDs(ctx context.Context) ([]string, error)
}

// ==================== 去重服务 ====================

// DedupService 已导入外部 ID 的内存索引
// 索引始终是持久层 external_id 的子集，从持久层重建，不作为唯一真相来源；
// 漏判由持久层唯一索引兜底（见 ErrDuplicateExternalID）
type DedupService struct {
	lister ExternalIDLister

	mu    sync.RWMutex
	known map[string]struct{}
}

// NewDedupService 创建去重服务
func NewDedupService(lister ExternalIDLister) *DedupService {
	return &DedupService{
		lister: lister,
		known:  make(map[string]struct{}),
	}
}

// Rebuild 从持久层重建索引
// 读取失败时降级为空索引（fail-open）：去重只是性能优化，正确性由唯一索引保证
func (s *DedupService) Rebuild(ctx context.Context) error {
	ids, err := s.lister.ListAllExternalIDs(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.known = make(map[string]struct{}, len(ids))
	if err != nil {
		log.Printf("[DedupService] 重建索引失败，降级为空索引: %v", err)
		return err
	}

	for _, id := range ids {
		s.known[id] = struct{}{}
	}
	log.Printf("[DedupService] 索引重建完成，共 %d 个已知 ID", len(s.known))
	return nil
}

// IsKnown 外部 ID 是否已导入
func (s *DedupService) IsKnown(externalID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.known[externalID]
	return ok
}

// MarkKnown 标记外部 ID 已导入，同进程内立即可见
func (s *DedupService) MarkKnown(externalID string) {
	if externalID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[externalID] = struct{}{}
}

// Count 索引大小（状态接口用）
func (s *DedupService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.known)
}
