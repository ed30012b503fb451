package storage

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

var (
	ErrMissingFile    = errors.New("no file uploaded")
	ErrTooLarge       = errors.New("file too large")
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

const mb = 1 << 20

// Policy 上传限制：大小上限与允许的 MIME 类型
type Policy struct {
	Kind     Kind
	MaxBytes int64
	Types    []string
}

// Checked 校验通过后的类型与扩展名
type Checked struct {
	ContentType string
	Ext         string
}

func AudioPolicy(maxMB int, types []string) Policy {
	if maxMB <= 0 {
		maxMB = 20
	}
	if len(types) == 0 {
		types = []string{"audio/mpeg", "audio/mp3"}
	}
	return Policy{Kind: KindAudio, MaxBytes: int64(maxMB) * mb, Types: types}
}

func CoverPolicy() Policy {
	return Policy{Kind: KindCover, MaxBytes: 5 * mb, Types: []string{"image/jpeg", "image/png", "image/webp"}}
}

func (p Policy) allows(contentType string) bool {
	contentType = normalizeType(contentType)
	for _, t := range p.Types {
		if normalizeType(t) == contentType {
			return true
		}
	}
	return false
}

// audio/mp3 是浏览器常见的非标准写法
func normalizeType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		t = mt
	}
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "audio/mp3" {
		return "audio/mpeg"
	}
	return t
}

var audioTypes = map[tag.FileType]string{
	tag.MP3:  "audio/mpeg",
	tag.FLAC: "audio/flac",
	tag.OGG:  "audio/ogg",
	tag.M4A:  "audio/mp4",
	tag.M4B:  "audio/mp4",
	tag.ALAC: "audio/mp4",
	tag.DSF:  "audio/dsf",
}

var defaultExt = map[string]string{
	"audio/mpeg": ".mp3",
	"audio/flac": ".flac",
	"audio/ogg":  ".ogg",
	"audio/mp4":  ".m4a",
	"audio/wav":  ".wav",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Check 校验文件大小与类型，结束时把读取位置重置到开头。
// 音频用 tag.Identify 识别容器格式，识别不出时信任声明的类型；图片用内容嗅探。
func (p Policy) Check(f io.ReadSeeker, size int64, declared, filename string) (Checked, error) {
	if f == nil || size <= 0 {
		return Checked{}, ErrMissingFile
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return Checked{}, ErrTooLarge
	}

	contentType := normalizeType(declared)
	if !p.allows(contentType) {
		return Checked{}, ErrTypeNotAllowed
	}

	switch p.Kind {
	case KindAudio:
		if _, ft, err := tag.Identify(f); err == nil {
			if detected, ok := audioTypes[ft]; ok {
				if !p.allows(detected) {
					return Checked{}, ErrTypeNotAllowed
				}
				contentType = detected
			}
		}
	case KindCover:
		head := make([]byte, 512)
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return Checked{}, err
		}
		n, err := io.ReadFull(f, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return Checked{}, err
		}
		sniffed := normalizeType(http.DetectContentType(head[:n]))
		if !p.allows(sniffed) {
			return Checked{}, ErrTypeNotAllowed
		}
		contentType = sniffed
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Checked{}, err
	}
	return Checked{ContentType: contentType, Ext: extFor(contentType, filename)}, nil
}

func extFor(contentType, filename string) string {
	if ext, ok := defaultExt[contentType]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(filename))
}
