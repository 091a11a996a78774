package utils

import "github.com/google/uuid"

func NewID() string { return uuid.NewString() }

// IsID 只接受规范 uuid 字符串
func IsID(s string) bool {
	u, err := uuid.Parse(s)
	return err == nil && u.String() == s
}
