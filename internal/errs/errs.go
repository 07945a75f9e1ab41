// Package errs 定义跨层共享的业务错误类别。
// 类别决定调用方的处理策略：校验失败与未找到直接返回给客户端，
// 并发冲突可安全重试整个事务，其余错误视为不可恢复。
package errs

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// 错误类别哨兵，使用 errors.Is 判断。
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("concurrency conflict")
)

// Validationf 构造一个带格式化说明的校验失败错误
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// NotFoundf 构造一个带格式化说明的未找到错误
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// MySQL错误码：1213 死锁，1205 锁等待超时，1062 唯一键冲突。
const (
	mysqlErrDeadlock     = 1213
	mysqlErrLockWait     = 1205
	mysqlErrDuplicateKey = 1062
)

// IsRetryable 判断错误是否为可重试的并发冲突（死锁或锁等待超时）。
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWait
	}
	return false
}

// IsDuplicateKey 判断错误是否为唯一约束冲突。
// 订单号生成的碰撞重试依赖该判断。
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDuplicateKey
	}
	return false
}
