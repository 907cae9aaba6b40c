package data

import (
	"context"
	"encoding/json"

	"pricing-service/internal/biz"
	"pricing-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// LedgerEntryEvent 发往通知主题的账本变更消息
type LedgerEntryEvent struct {
	EntryID          string `json:"entry_id"`
	EmployerID       string `json:"employer_id"`
	Direction        string `json:"direction"`
	Amount           int64  `json:"amount"`
	ResultingBalance int64  `json:"resulting_balance"`
	Reason           string `json:"reason"`
	CorrelationID    string `json:"correlation_id"`
	ActorID          string `json:"actor_id,omitempty"`
	CreatedAt        int64  `json:"created_at"` // unix 毫秒
}

// ledgerNotifier 通过 RocketMQ 通知下游（邮件/短信等），未启用时只打日志
type ledgerNotifier struct {
	data  *Data
	topic string
	log   *log.Helper
}

// NewLedgerNotifier 创建账本通知器（返回 biz.Notifier 接口）
func NewLedgerNotifier(data *Data, c *conf.Bootstrap, logger log.Logger) biz.Notifier {
	topic := "pricing_ledger_entries"
	if c.Data != nil && c.Data.Rocketmq != nil && c.Data.Rocketmq.LedgerTopic != "" {
		topic = c.Data.Rocketmq.LedgerTopic
	}
	return &ledgerNotifier{
		data:  data,
		topic: topic,
		log:   log.NewHelper(logger),
	}
}

func (n *ledgerNotifier) LedgerEntryApplied(ctx context.Context, entry *biz.TransactionLogEntry) error {
	if n.data.mq == nil {
		n.log.Debugf("ledger entry %s applied for employer=%s (notifications disabled)", entry.ID, entry.EmployerID)
		return nil
	}
	body, err := json.Marshal(&LedgerEntryEvent{
		EntryID:          entry.ID,
		EmployerID:       entry.EmployerID,
		Direction:        string(entry.Direction),
		Amount:           entry.Amount,
		ResultingBalance: entry.ResultingBalance,
		Reason:           entry.Reason,
		CorrelationID:    entry.CorrelationID,
		ActorID:          entry.ActorID,
		CreatedAt:        entry.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	msg := primitive.NewMessage(n.topic, body)
	msg.WithKeys([]string{entry.EmployerID, entry.CorrelationID})
	_, err = n.data.mq.SendSync(ctx, msg)
	return err
}
