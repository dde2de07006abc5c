package service

import (
	"sync"
	"time"
)

// Monitor 运行监控，统计错误与关键链路吞吐
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	RedisErrors     int64
	MQErrors        int64
	DBErrors        int64
	FlashSaleErrors int64
	PaymentErrors   int64
	WorkerErrors    int64

	// 性能统计
	FlashSaleRequests int64
	FlashSaleSuccess  int64
	PaymentsInitiated int64
	PaymentsCompleted int64
	WorkerProcessed   int64
	WorkerFailed      int64

	// 时间统计
	LastRedisError    time.Time
	LastMQError       time.Time
	LastDBError       time.Time
	LastFlashSaleTime time.Time
	LastPaymentTime   time.Time
	LastWorkerTime    time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordRedisError 记录Redis错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
	m.LastRedisError = time.Now()
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
	m.LastMQError = time.Now()
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

// RecordFlashSaleRequest 记录抢购请求
func (m *Monitor) RecordFlashSaleRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlashSaleRequests++
	m.LastFlashSaleTime = time.Now()
}

// RecordFlashSaleSuccess 记录抢购成功入队
func (m *Monitor) RecordFlashSaleSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlashSaleSuccess++
}

// RecordFlashSaleError 记录抢购错误
func (m *Monitor) RecordFlashSaleError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlashSaleErrors++
}

// RecordPaymentInitiated 记录支付发起
func (m *Monitor) RecordPaymentInitiated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PaymentsInitiated++
	m.LastPaymentTime = time.Now()
}

// RecordPaymentCompleted 记录支付完成
func (m *Monitor) RecordPaymentCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PaymentsCompleted++
	m.LastPaymentTime = time.Now()
}

// RecordPaymentError 记录支付错误
func (m *Monitor) RecordPaymentError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PaymentErrors++
}

// RecordWorkerProcessed 记录Worker处理成功
func (m *Monitor) RecordWorkerProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerProcessed++
	m.LastWorkerTime = time.Now()
}

// RecordWorkerFailed 记录Worker处理失败
func (m *Monitor) RecordWorkerFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerFailed++
	m.WorkerErrors++
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flashRate := float64(0)
	if m.FlashSaleRequests > 0 {
		flashRate = float64(m.FlashSaleSuccess) / float64(m.FlashSaleRequests) * 100
	}

	payRate := float64(0)
	if m.PaymentsInitiated > 0 {
		payRate = float64(m.PaymentsCompleted) / float64(m.PaymentsInitiated) * 100
	}

	workerRate := float64(0)
	totalWorker := m.WorkerProcessed + m.WorkerFailed
	if totalWorker > 0 {
		workerRate = float64(m.WorkerProcessed) / float64(totalWorker) * 100
	}

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"redis":      m.RedisErrors,
			"mq":         m.MQErrors,
			"db":         m.DBErrors,
			"flash_sale": m.FlashSaleErrors,
			"payment":    m.PaymentErrors,
			"worker":     m.WorkerErrors,
		},
		"performance": map[string]interface{}{
			"flash_sale_requests":     m.FlashSaleRequests,
			"flash_sale_success":      m.FlashSaleSuccess,
			"flash_sale_success_rate": flashRate,
			"payments_initiated":      m.PaymentsInitiated,
			"payments_completed":      m.PaymentsCompleted,
			"payment_success_rate":    payRate,
			"worker_processed":        m.WorkerProcessed,
			"worker_failed":           m.WorkerFailed,
			"worker_success_rate":     workerRate,
		},
		"last_events": map[string]interface{}{
			"redis_error":     m.LastRedisError,
			"mq_error":        m.LastMQError,
			"db_error":        m.LastDBError,
			"last_flash_sale": m.LastFlashSaleTime,
			"last_payment":    m.LastPaymentTime,
			"last_worker":     m.LastWorkerTime,
		},
	}
}

// Reset 重置统计（用于测试或定期清理）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors = 0
	m.MQErrors = 0
	m.DBErrors = 0
	m.FlashSaleErrors = 0
	m.PaymentErrors = 0
	m.WorkerErrors = 0
	m.FlashSaleRequests = 0
	m.FlashSaleSuccess = 0
	m.PaymentsInitiated = 0
	m.PaymentsCompleted = 0
	m.WorkerProcessed = 0
	m.WorkerFailed = 0
}
