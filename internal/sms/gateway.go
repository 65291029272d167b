package sms

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storefront-auth/internal/util"
)

// Gateway wraps a Sender with the message templates the storefront uses.
type Gateway struct {
	sender Sender
}

func NewGateway(sender Sender) *Gateway {
	return &Gateway{sender: sender}
}

func (g *Gateway) Send(ctx context.Context, phone, message string) (*Result, error) {
	return g.sender.Send(ctx, phone, message)
}

// SendOTP delivers the one-time code. The five minute note matches the
// challenge TTL.
func (g *Gateway) SendOTP(ctx context.Context, phone, code string) (*Result, error) {
	message := fmt.Sprintf("کد تأیید فروشگاه: %s\nاین کد تا ۵ دقیقه معتبر است.", code)
	return g.sender.Send(ctx, phone, message)
}

// SendWelcome goes out exactly once, on first activation.
func (g *Gateway) SendWelcome(ctx context.Context, phone string) (*Result, error) {
	message := "سلام!\nبه خانواده بزرگ فروشگاه خوش آمدید! 🎉\nبا ما بهترین تجربه خرید را داشته باشید."

	result, err := g.sender.Send(ctx, phone, message)
	if err == nil && result != nil && !result.Success {
		util.Warn("Welcome SMS rejected by gateway",
			zap.String("phone", util.MaskPhone(phone)),
			zap.String("error", result.Error))
	}
	return result, err
}
