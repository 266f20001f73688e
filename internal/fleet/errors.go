package fleet

import (
	"errors"
	"fmt"

	"github.com/wwwzy/medfleet/internal/storage"
)

var (
	// ErrUnauthorized 表示需要登录的写操作没有解析到调用方身份。
	ErrUnauthorized = errors.New("fleet: unauthorized")
	// ErrNotFound 表示写操作指向的记录不存在。
	ErrNotFound = errors.New("fleet: not found")
	// ErrInvalidArgument 表示入参缺失或取值不合法。
	ErrInvalidArgument = errors.New("fleet: invalid argument")
	// ErrInvalidTransition 表示告警状态机不允许的迁移（例如确认一个已解决的告警）。
	ErrInvalidTransition = errors.New("fleet: invalid alert transition")
)

// translateStoreErr 把存储层的 ErrNotFound 换成服务层的 ErrNotFound，其余错误原样包装。
func translateStoreErr(op Operation, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func invalidArgument(op Operation, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidArgument, fmt.Sprintf(format, args...))
}
