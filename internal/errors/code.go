package errors

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-kratos/kratos/v2/errors"
)

// Pricing Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，Pricing 固定为 20
//   MM: 模块标识
//   EE: 模块内错误序号
//
// 模块划分：
//   01: 价目表 / 配置
//   02: 参数校验
//   03: 钱包 / 流水
//   04: 订阅配额
//   05: 结算

// 价目表模块错误码 (200100-200199)
const (
	// ErrCodeConfiguration 定价配置错误（重叠/缺失区间、错误的分摊比例）
	ErrCodeConfiguration = 200101
	// ErrCodeBundleNotFound 积分包不存在
	ErrCodeBundleNotFound = 200102
	// ErrCodePlanNotFound 订阅套餐不存在
	ErrCodePlanNotFound = 200103
	// ErrCodeOverrideNotFound 企业定制方案不存在
	ErrCodeOverrideNotFound = 200104
)

// 参数校验模块错误码 (200200-200299)
const (
	// ErrCodeValidation 参数校验失败
	ErrCodeValidation = 200201
)

// 钱包模块错误码 (200300-200399)
const (
	// ErrCodeWalletNotFound 钱包不存在
	ErrCodeWalletNotFound = 200301
	// ErrCodeInsufficientBalance 余额不足
	ErrCodeInsufficientBalance = 200302
	// ErrCodeCorrelationConflict 幂等键被不同请求复用
	ErrCodeCorrelationConflict = 200303
	// ErrCodeConcurrentUpdate 乐观锁冲突
	ErrCodeConcurrentUpdate = 200304
	// ErrCodeLockFailed 获取钱包锁失败
	ErrCodeLockFailed = 200305
)

// 订阅模块错误码 (200400-200499)
const (
	// ErrCodeNoActiveSubscription 无有效订阅
	ErrCodeNoActiveSubscription = 200401
	// ErrCodeQuotaExceeded 配额用尽
	ErrCodeQuotaExceeded = 200402
)

// 结算模块错误码 (200500-200599)
const (
	// ErrCodeSettlementNotFound 结算单不存在
	ErrCodeSettlementNotFound = 200501
)

const (
	ReasonConfiguration        = "CONFIGURATION_ERROR"
	ReasonValidation           = "VALIDATION_ERROR"
	ReasonBundleNotFound       = "BUNDLE_NOT_FOUND"
	ReasonPlanNotFound         = "PLAN_NOT_FOUND"
	ReasonOverrideNotFound     = "OVERRIDE_NOT_FOUND"
	ReasonWalletNotFound       = "WALLET_NOT_FOUND"
	ReasonInsufficientBalance  = "INSUFFICIENT_BALANCE"
	ReasonCorrelationConflict  = "CORRELATION_CONFLICT"
	ReasonConcurrentUpdate     = "CONCURRENT_UPDATE"
	ReasonLockFailed           = "LOCK_FAILED"
	ReasonNoActiveSubscription = "NO_ACTIVE_SUBSCRIPTION"
	ReasonQuotaExceeded        = "QUOTA_EXCEEDED"
	ReasonSettlementNotFound   = "SETTLEMENT_NOT_FOUND"
)

func newError(status, code int, reason, format string, args ...interface{}) *errors.Error {
	return errors.New(status, reason, fmt.Sprintf(format, args...)).
		WithMetadata(map[string]string{"code": strconv.Itoa(code)})
}

// ErrorConfiguration 配置错误需要管理员修复，不会自动降级
func ErrorConfiguration(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusInternalServerError, ErrCodeConfiguration, ReasonConfiguration, format, args...)
}

func IsConfiguration(err error) bool { return errors.Reason(err) == ReasonConfiguration }

func ErrorValidation(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusBadRequest, ErrCodeValidation, ReasonValidation, format, args...)
}

func IsValidation(err error) bool { return errors.Reason(err) == ReasonValidation }

func ErrorBundleNotFound(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusNotFound, ErrCodeBundleNotFound, ReasonBundleNotFound, format, args...)
}

func IsBundleNotFound(err error) bool { return errors.Reason(err) == ReasonBundleNotFound }

func ErrorPlanNotFound(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusNotFound, ErrCodePlanNotFound, ReasonPlanNotFound, format, args...)
}

func IsPlanNotFound(err error) bool { return errors.Reason(err) == ReasonPlanNotFound }

func ErrorOverrideNotFound(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusNotFound, ErrCodeOverrideNotFound, ReasonOverrideNotFound, format, args...)
}

func IsOverrideNotFound(err error) bool { return errors.Reason(err) == ReasonOverrideNotFound }

func ErrorWalletNotFound(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusNotFound, ErrCodeWalletNotFound, ReasonWalletNotFound, format, args...)
}

func IsWalletNotFound(err error) bool { return errors.Reason(err) == ReasonWalletNotFound }

func ErrorInsufficientBalance(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusPaymentRequired, ErrCodeInsufficientBalance, ReasonInsufficientBalance, format, args...)
}

func IsInsufficientBalance(err error) bool { return errors.Reason(err) == ReasonInsufficientBalance }

func ErrorCorrelationConflict(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusConflict, ErrCodeCorrelationConflict, ReasonCorrelationConflict, format, args...)
}

func IsCorrelationConflict(err error) bool { return errors.Reason(err) == ReasonCorrelationConflict }

func ErrorConcurrentUpdate(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusConflict, ErrCodeConcurrentUpdate, ReasonConcurrentUpdate, format, args...)
}

func IsConcurrentUpdate(err error) bool { return errors.Reason(err) == ReasonConcurrentUpdate }

func ErrorLockFailed(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusServiceUnavailable, ErrCodeLockFailed, ReasonLockFailed, format, args...)
}

func IsLockFailed(err error) bool { return errors.Reason(err) == ReasonLockFailed }

func ErrorNoActiveSubscription(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusForbidden, ErrCodeNoActiveSubscription, ReasonNoActiveSubscription, format, args...)
}

func IsNoActiveSubscription(err error) bool { return errors.Reason(err) == ReasonNoActiveSubscription }

func ErrorQuotaExceeded(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusForbidden, ErrCodeQuotaExceeded, ReasonQuotaExceeded, format, args...)
}

func IsQuotaExceeded(err error) bool { return errors.Reason(err) == ReasonQuotaExceeded }

func ErrorSettlementNotFound(format string, args ...interface{}) *errors.Error {
	return newError(http.StatusNotFound, ErrCodeSettlementNotFound, ReasonSettlementNotFound, format, args...)
}

func IsSettlementNotFound(err error) bool { return errors.Reason(err) == ReasonSettlementNotFound }
