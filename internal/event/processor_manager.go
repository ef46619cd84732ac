package event

import (
	"context"
	"sort"
	"sync"

	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/stripe/stripe-go/v76"
)

// EventProcessor 支付渠道事件处理器
type EventProcessor interface {
	Process(ctx context.Context, event *stripe.Event) error
	GetEventType() string
}

// ProcessorManager 按事件类型分发的处理器管理器
type ProcessorManager struct {
	mu         sync.RWMutex
	processors map[string]EventProcessor
}

// NewProcessorManager 创建处理器管理器并注册转账事件处理器
func NewProcessorManager(dispatch *logic.DispatchLogic) *ProcessorManager {
	manager := &ProcessorManager{
		processors: make(map[string]EventProcessor),
	}

	for _, p := range NewTransferProcessors(dispatch) {
		manager.RegisterProcessor(p)
	}

	logger.Info("ProcessorManager initialized with %d processors", len(manager.processors))
	return manager
}

// RegisterProcessor 注册事件处理器
func (pm *ProcessorManager) RegisterProcessor(processor EventProcessor) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	eventType := processor.GetEventType()
	pm.processors[eventType] = processor
	logger.Debug("Registered processor for event type: %s", eventType)
}

// GetProcessor 获取指定事件类型的处理器
func (pm *ProcessorManager) GetProcessor(eventType string) (EventProcessor, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	processor, exists := pm.processors[eventType]
	return processor, exists
}

// ProcessEvent 处理事件，未知类型直接确认；返回是否有处理器接手
func (pm *ProcessorManager) ProcessEvent(ctx context.Context, event *stripe.Event) (bool, error) {
	processor, exists := pm.GetProcessor(string(event.Type))
	if !exists {
		logger.Debug("No processor found for event type: %s", event.Type)
		return false, nil
	}

	return true, processor.Process(ctx, event)
}

// GetSupportedEventTypes 获取支持的事件类型列表
func (pm *ProcessorManager) GetSupportedEventTypes() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	eventTypes := make([]string, 0, len(pm.processors))
	for eventType := range pm.processors {
		eventTypes = append(eventTypes, eventType)
	}
	sort.Strings(eventTypes)
	return eventTypes
}
