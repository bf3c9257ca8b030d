package artifact

import (
	"archive/zip"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrInvalidHexStream 十六进制文本中含有非法字符或长度为奇数
	ErrInvalidHexStream = errors.New("invalid hex stream")
	// ErrUnsafeName 输出文件名含有路径分隔符
	ErrUnsafeName = errors.New("unsafe artifact name")
)

// Bundle 一次处理生成的三个文件
type Bundle struct {
	TextPath   string
	BinaryPath string
	ZipPath    string
}

// Writer 把报告写入输出目录
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer { return &Writer{dir: dir} }

func (w *Writer) Dir() string { return w.dir }

// SafeName 只允许单层文件名
func SafeName(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return base, nil
}

// WriteLatin1 以 ISO-8859-1 编码写入文本，无法编码的字符写成替换字节
func WriteLatin1(path, text string) error {
	encoded, err := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).String(text)
	if err != nil {
		return fmt.Errorf("文本无法以 latin1 编码: %w", err)
	}
	return os.WriteFile(path, []byte(encoded), 0o644)
}

// DecodeHexStream 去掉所有空白后按十六进制解码
func DecodeHexStream(stream string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, stream)
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrInvalidHexStream, len(clean))
	}
	out, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHexStream, err)
	}
	return out, nil
}

// Zip 把 files 打包到 zipPath，压缩包内只保留文件名
func Zip(zipPath string, files ...string) (err error) {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(out)
	for _, f := range files {
		if err = addFile(zw, f); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	dst, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, in)
	return err
}

// Write 写出 <name>.txt、<name>.bin 并打包为 <zipName>.zip
func (w *Writer) Write(name, zipName, text, hexStream string) (Bundle, error) {
	name, err := SafeName(name)
	if err != nil {
		return Bundle{}, err
	}
	if zipName, err = SafeName(zipName); err != nil {
		return Bundle{}, err
	}
	binary, err := DecodeHexStream(hexStream)
	if err != nil {
		return Bundle{}, err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Bundle{}, err
	}

	b := Bundle{
		TextPath:   filepath.Join(w.dir, name+".txt"),
		BinaryPath: filepath.Join(w.dir, name+".bin"),
		ZipPath:    filepath.Join(w.dir, zipName+".zip"),
	}
	if err := WriteLatin1(b.TextPath, text); err != nil {
		return Bundle{}, err
	}
	if err := os.WriteFile(b.BinaryPath, binary, 0o644); err != nil {
		return Bundle{}, err
	}
	if err := Zip(b.ZipPath, b.TextPath, b.BinaryPath); err != nil {
		return Bundle{}, fmt.Errorf("打包失败: %w", err)
	}
	return b, nil
}

// Path 输出目录中的文件，name 必须是单层文件名
func (w *Writer) Path(name string) (string, error) {
	name, err := SafeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(w.dir, name), nil
}
