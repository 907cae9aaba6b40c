package server

import (
	"context"
	"encoding/json"

	"pricing-service/internal/biz"
	"pricing-service/internal/conf"
	pricingErrors "pricing-service/internal/errors"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// HireEventConsumer 消费招聘系统的入职确认事件并完成 PPH 结算
type HireEventConsumer struct {
	c       rocketmq.PushConsumer
	engine  *biz.EngineUseCase
	conf    *conf.Data
	log     *log.Helper
	enabled bool
}

// NewHireEventConsumer creates a RocketMQ consumer server
func NewHireEventConsumer(c *conf.Data, engine *biz.EngineUseCase, logger log.Logger) *HireEventConsumer {
	helper := log.NewHelper(logger)
	if c.Rocketmq == nil || !c.Rocketmq.Enabled || c.Rocketmq.HireTopic == "" {
		return &HireEventConsumer{log: helper, enabled: false}
	}

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(c.Rocketmq.NameServers)),
		consumer.WithGroupName(c.Rocketmq.GroupName),
		consumer.WithRetry(int(c.Rocketmq.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(16),
	)
	if err != nil {
		helper.Errorf("init hire consumer error: %v", err)
		return &HireEventConsumer{log: helper, enabled: false}
	}

	return &HireEventConsumer{
		c:       r,
		engine:  engine,
		conf:    c,
		log:     helper,
		enabled: true,
	}
}

// Start starts the consumer
func (s *HireEventConsumer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("HireEventConsumer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting HireEventConsumer, topic: %s", s.conf.Rocketmq.HireTopic)
	if err := s.c.Subscribe(s.conf.Rocketmq.HireTopic, consumer.MessageSelector{}, s.handler); err != nil {
		// 不返回错误，避免 RocketMQ 不可用时整个应用启动失败
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Rocketmq.HireTopic, err)
		return nil
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop stops the consumer
func (s *HireEventConsumer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping HireEventConsumer")
	return s.c.Shutdown()
}

func (s *HireEventConsumer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		if err := s.consume(ctx, msg.Body); err != nil {
			s.log.Errorf("Settle hire failed, will retry: msg=%s, error=%v", msg.MsgId, err)
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}

// consume 处理单条事件；只有可重试的错误才返回
func (s *HireEventConsumer) consume(ctx context.Context, body []byte) error {
	var event biz.HireConfirmedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Errorf("Unmarshal hire event failed: %v, body: %s", err, string(body))
		return nil
	}
	if event.EventID == "" {
		s.log.Errorf("Hire event without id dropped: employer=%s, hire=%s", event.EmployerID, event.HireRef)
		return nil
	}
	res, err := s.engine.SettleHire(ctx, event.HireRequest())
	if err != nil {
		if permanent(err) {
			s.log.Errorf("Hire event rejected: event=%s, employer=%s, error=%v", event.EventID, event.EmployerID, err)
			return nil
		}
		return err
	}
	if res.Settlement == nil {
		s.log.Warnf("Hire event parked for manual pricing: event=%s, employer=%s", event.EventID, event.EmployerID)
	}
	return nil
}

// permanent 重投也不会成功的错误
func permanent(err error) bool {
	return pricingErrors.IsValidation(err) ||
		pricingErrors.IsWalletNotFound(err) ||
		pricingErrors.IsConfiguration(err) ||
		pricingErrors.IsCorrelationConflict(err)
}
