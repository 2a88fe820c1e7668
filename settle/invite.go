package settle

import (
	"fmt"
	"math/rand"
)

// maxInviteAttempts bounds the collision-retry loop. With 900,000 possible
// codes the cap is never hit in practice, but an unbounded loop against a
// nearly full code space would spin forever.
const maxInviteAttempts = 1000

// NewInviteCode draws random 6-digit codes until one passes the exists check.
// The check is usually backed by the group store's unique index.
func NewInviteCode(exists func(code string) (bool, error)) (string, error) {
	for i := 0; i < maxInviteAttempts; i++ {
		code := fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		taken, err := exists(code)
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free invite code after %d attempts", maxInviteAttempts)
}
