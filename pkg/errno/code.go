package errno

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
	// Tag 对外暴露的错误分类，调用方据此区分配额拒绝与参数错误
	Tag string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

const (
	TagValidation         = "ValidationError"
	TagUnresolvableSource = "UnresolvableSource"
	TagQuotaExceeded      = "QuotaExceeded"
	TagStepFailure        = "StepFailure"
	TagNotFound           = "NotFound"
	TagInternal           = "InternalError"
)

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrInvalidParam   = &Errno{Code: 400, Message: "Invalid parameter", Tag: TagValidation}
	ErrUnauthorized   = &Errno{Code: 401, Message: "Unauthorized"}
	ErrNotFound       = &Errno{Code: 404, Message: "Not found", Tag: TagNotFound}
	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error", Tag: TagInternal}
	ErrDatabase       = &Errno{Code: 501, Message: "Database error", Tag: TagInternal}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error", Tag: TagInternal}

	// 业务错误码
	ErrMissingParam = &Errno{Code: 20001, Message: "Missing required parameter", Tag: TagValidation}
	ErrQueueFull    = &Errno{Code: 20012, Message: "Job queue is full", Tag: TagInternal}
	ErrStorage      = &Errno{Code: 20013, Message: "Object storage error", Tag: TagInternal}

	// 媒体流水线错误码
	ErrValidation         = &Errno{Code: 20101, Message: "Invalid request", Tag: TagValidation}
	ErrUnresolvableSource = &Errno{Code: 20102, Message: "Source cannot be resolved", Tag: TagUnresolvableSource}
	ErrQuotaExceeded      = &Errno{Code: 20103, Message: "Daily quota exceeded", Tag: TagQuotaExceeded}
	ErrStepFailure        = &Errno{Code: 20104, Message: "Pipeline step failed", Tag: TagStepFailure}
	ErrJobNotFound        = &Errno{Code: 20105, Message: "Job not found", Tag: TagNotFound}
	ErrInvalidJobStatus   = &Errno{Code: 20106, Message: "Invalid job status transition", Tag: TagInternal}
	ErrUnsupportedStep    = &Errno{Code: 20107, Message: "Unsupported step kind", Tag: TagValidation}
)
