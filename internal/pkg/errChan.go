package pkg

import (
	"context"
)

type errChanKey struct{}

// WithErrChan 把后台任务的错误上报通道挂载到 context 上
func WithErrChan(ctx context.Context, errChan chan error) context.Context {
	return context.WithValue(ctx, errChanKey{}, errChan)
}

// ErrChanFromContext 从 context 中提取错误通道，没有时返回 nil
func ErrChanFromContext(ctx context.Context) chan<- error {
	if errChan, ok := ctx.Value(errChanKey{}).(chan error); ok {
		return errChan
	}
	return nil
}

// ReportErr 非阻塞地上报错误，通道已满或不存在时返回 false
func ReportErr(ctx context.Context, err error) bool {
	errChan := ErrChanFromContext(ctx)
	if errChan == nil || err == nil {
		return false
	}
	select {
	case errChan <- err:
		return true
	default:
		return false
	}
}
