// Package asset はアップロードされた画像ファイルから検証に必要な属性を抽出する。
package asset

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hitoshi/awesome-events/internal/model"
)

// Inspect は画像データのContent-Type、バイト数、ピクセル幅・高さを抽出する。
// Content-Typeはファイル名や申告値ではなく内容から判定する。
// デコードできない形式の場合、幅・高さは0のまま返す（形式の検証はvalidationが行う）。
func Inspect(data []byte) *model.ImageAsset {
	asset := &model.ImageAsset{
		ContentType: detectContentType(data),
		ByteSize:    int64(len(data)),
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		asset.Width = cfg.Width
		asset.Height = cfg.Height
	}

	return asset
}

// detectContentType はmimetypeで判定したMIMEタイプをパラメータなしで返す。
func detectContentType(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}
