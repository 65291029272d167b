package handler

// Stable error codes plus the Persian messages the storefront shows.
const (
	codeInvalidPhone   = "invalid_phone"
	codeInvalidCode    = "invalid_code"
	codeInvalidToken   = "invalid_token"
	codeUserNotFound   = "user_not_found"
	codeDuplicatePhone = "duplicate_phone"
	codeRateLimited    = "rate_limited"
	codeDeviceNotFound = "device_not_found"
	codeValidation     = "validation_error"
	codeInternal       = "internal_error"
	codeUnauthorized   = "unauthorized"
)

const (
	msgCodeSent       = "کد تایید ارسال شد"
	msgInvalidPhone   = "شماره موبایل نامعتبر است"
	msgInvalidCode    = "کد تایید نامعتبر است"
	msgInvalidToken   = "توکن نامعتبر است"
	msgUserNotFound   = "حسابی با این شماره موبایل وجود ندارد"
	msgDuplicatePhone = "این شماره قبلا ثبت شده است"
	msgRateLimited    = "تعداد درخواست‌ها بیش از حد مجاز است"
	msgDeviceNotFound = "دستگاه مورد نظر یافت نشد"
	msgValidation     = "درخواست نامعتبر است"
	msgInternal       = "خطای داخلی سرور"
	msgUnauthorized   = "ابتدا وارد حساب خود شوید"
	msgLoggedOut      = "با موفقیت خارج شدید"
	msgDeviceRevoked  = "دستگاه حذف شد"
	msgSignupOK       = "ثبت نام انجام شد، کد تایید ارسال شد"
)
