// Package natsbus はレストラン要約の更新通知を NATS 経由で再インデックス処理に届ける
package natsbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/cureat/cureat/internal/core/catalog"
)

const (
	// DefaultSubject は要約更新通知のサブジェクト
	DefaultSubject = "cureat.restaurant.summary_changed"
	// DefaultQueue は複数インスタンスで通知を分担するキューグループ
	DefaultQueue = "cureat-indexer"
)

// Connect は再接続を無制限にした NATS 接続を作成する
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}

// Publisher は catalog.ChangeNotifier を NATS への発行で実装する
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher は Publisher を作成する
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// NotifySummaryChanged は更新通知をJSONで発行する
func (p *Publisher) NotifySummaryChanged(ctx context.Context, change catalog.SummaryChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode summary change: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish summary change: %w", err)
	}
	return nil
}

var _ catalog.ChangeNotifier = (*Publisher)(nil)

// Handler は受信した更新通知を処理する
type Handler func(ctx context.Context, change catalog.SummaryChange)

// Subscribe はキューグループで更新通知を購読する。壊れたメッセージは捨てる。
func Subscribe(conn *nats.Conn, subject, queue string, handler Handler, logger *slog.Logger) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if queue == "" {
		queue = DefaultQueue
	}
	sub, err := conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		var change catalog.SummaryChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			logger.Warn("dropping malformed summary change", "subject", msg.Subject, "error", err)
			return
		}
		if change.RestaurantID <= 0 {
			logger.Warn("dropping summary change without restaurant id", "subject", msg.Subject)
			return
		}
		handler(context.Background(), change)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	return sub, nil
}
