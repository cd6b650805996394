package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/awesome-events/internal/model"
)

// 入力値の上限。いずれも上限値ちょうどは有効。
const (
	MaxEventNameLength     = 50
	MaxEventPlaceLength    = 100
	MaxEventContentLength  = 2000
	MaxTicketCommentLength = 30

	MaxImageByteSize = 10 * 1024 * 1024
	MaxImageWidth    = 2000
	MaxImageHeight   = 2000
)

// AllowedImageContentTypes はイベント画像として受け付けるContent-Type。
// .jpg と .jpeg はどちらも image/jpeg として判定される。
var AllowedImageContentTypes = []string{"image/png", "image/jpeg"}

// 独自タグ
const (
	tagPresent          = "present"
	tagBeforeEndAt      = "before_end_at"
	tagImageContentType = "image_content_type"
	tagImageByteSize    = "image_byte_size"
	tagImageWidth       = "image_width"
	tagImageHeight      = "image_height"
)

// eventForm はEventの検証対象フィールドをタグ付きで写したもの。
type eventForm struct {
	Owner   string            `validate:"required" field:"owner"`
	Name    string            `validate:"present,max=50" field:"name"`
	Place   string            `validate:"present,max=100" field:"place"`
	Content string            `validate:"present,max=2000" field:"content"`
	StartAt *time.Time        `validate:"required" field:"start_at"`
	EndAt   *time.Time        `validate:"required" field:"end_at"`
	Image   *model.ImageAsset `validate:"-" field:"image"`
}

// ticketForm はTicketの検証対象フィールドをタグ付きで写したもの。
type ticketForm struct {
	Comment string `validate:"max=30" field:"comment"`
}

// Validator はgo-playground/validatorをラップしたイベント・参加登録の検証器。
// 並行利用して安全。
type Validator struct {
	v *validator.Validate
}

// New はValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})

	// Railsのpresenceと同じく空白のみの文字列も未入力とみなす
	_ = v.RegisterValidation(tagPresent, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	v.RegisterStructValidation(validateEventForm, eventForm{})

	return &Validator{v: v}
}

var defaultValidator = New()

// ValidateEvent はデフォルトのValidatorでイベントを検証する。
func ValidateEvent(e *model.Event) Errors {
	return defaultValidator.ValidateEvent(e)
}

// ValidateTicket はデフォルトのValidatorで参加登録を検証する。
func ValidateTicket(t *model.Ticket) Errors {
	return defaultValidator.ValidateTicket(t)
}

// ValidateEvent はイベントの全ルールを評価し、違反をフィールドごとに返す。
func (v *Validator) ValidateEvent(e *model.Event) Errors {
	form := eventForm{
		Owner:   e.OwnerID,
		Name:    e.Name,
		Place:   e.Place,
		Content: e.Content,
		StartAt: e.StartAt,
		EndAt:   e.EndAt,
		Image:   e.Image,
	}
	return v.collect(form)
}

// ValidateTicket は参加登録のコメント長を検証する。
func (v *Validator) ValidateTicket(t *model.Ticket) Errors {
	return v.collect(ticketForm{Comment: t.Comment})
}

func (v *Validator) collect(form any) Errors {
	var errs Errors

	err := v.v.Struct(form)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationErrorはフォーム定義の誤りでのみ発生する
		panic(fmt.Sprintf("validation: %v", err))
	}

	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

// validateEventForm は複数フィールドにまたがるルールと画像ルールを評価する。
func validateEventForm(sl validator.StructLevel) {
	form := sl.Current().Interface().(eventForm)

	// 開始・終了の前後関係は両方が入力されている場合のみ検証する
	if form.StartAt != nil && form.EndAt != nil && !form.StartAt.Before(*form.EndAt) {
		sl.ReportError(form.StartAt, "start_at", "StartAt", tagBeforeEndAt, "")
	}

	img := form.Image
	if img == nil {
		return
	}
	if !isAllowedImageContentType(img.ContentType) {
		sl.ReportError(img.ContentType, "image", "Image", tagImageContentType, img.ContentType)
	}
	if img.ByteSize > MaxImageByteSize {
		mb := float64(img.ByteSize) / (1024 * 1024)
		sl.ReportError(img.ByteSize, "image", "Image", tagImageByteSize, strconv.FormatFloat(mb, 'f', 2, 64))
	}
	if img.Width > MaxImageWidth {
		sl.ReportError(img.Width, "image", "Image", tagImageWidth, strconv.Itoa(img.Width))
	}
	if img.Height > MaxImageHeight {
		sl.ReportError(img.Height, "image", "Image", tagImageHeight, strconv.Itoa(img.Height))
	}
}

func isAllowedImageContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range AllowedImageContentTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

// message はFieldErrorを表示用メッセージ（フィールド名なし）に変換する。
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", tagPresent:
		return "を入力してください"
	case "max":
		return fmt.Sprintf("は%s文字以内で入力してください", fe.Param())
	case tagBeforeEndAt:
		return "は終了時間よりも前に設定してください"
	case tagImageContentType:
		got := fe.Param()
		if got == "" {
			got = "不明な形式"
		}
		return fmt.Sprintf("は png, jpg, jpeg 形式のみアップロードできます（%s）", got)
	case tagImageByteSize:
		return fmt.Sprintf("は%dMB以下にしてください（現在 %sMB）", MaxImageByteSize/(1024*1024), fe.Param())
	case tagImageWidth:
		return fmt.Sprintf("の横幅は%dpx以下にしてください（現在 %spx）", MaxImageWidth, fe.Param())
	case tagImageHeight:
		return fmt.Sprintf("の縦幅は%dpx以下にしてください（現在 %spx）", MaxImageHeight, fe.Param())
	default:
		return "は不正な値です"
	}
}
