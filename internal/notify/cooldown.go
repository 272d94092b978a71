package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wisdom-campus/internal/auth0"
)

// CooldownError 冷却期内的重复发送请求。
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("verification email cooldown: %ds remaining", int(e.Remaining.Seconds()))
}

// Notifier 按邮箱限频的验证邮件派发器。
// 冷却状态只在进程内存里，重启丢失也没关系：这是防刷措施，不是安全控制。
// 多实例部署会欠约束，可接受。
type Notifier struct {
	provider auth0.Provider
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time // key: email

	// 测试注入的时钟
	now func() time.Time
}

// NewNotifier 构造函数，进程启动时创建一次，注入到需要发信的组件。
func NewNotifier(provider auth0.Provider, cooldown time.Duration) *Notifier {
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Notifier{
		provider: provider,
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Send 发送验证邮件。冷却期内返回 *CooldownError（带剩余秒数），
// 时间戳在提供方调用成功后才记录，发送失败不消耗冷却窗口。
func (n *Notifier) Send(ctx context.Context, email, auth0ID string) error {
	n.mu.Lock()
	if last, ok := n.lastSent[email]; ok {
		if elapsed := n.now().Sub(last); elapsed < n.cooldown {
			remaining := n.cooldown - elapsed
			n.mu.Unlock()
			return &CooldownError{Remaining: remaining}
		}
	}
	// 先占住窗口再发，避免两个并发请求都通过检查
	n.lastSent[email] = n.now()
	n.mu.Unlock()

	if err := n.provider.SendVerificationEmail(ctx, auth0ID); err != nil {
		// 发送失败，退回窗口
		n.mu.Lock()
		delete(n.lastSent, email)
		n.mu.Unlock()
		return err
	}
	return nil
}
