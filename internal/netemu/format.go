package netemu

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidHex 无法按字节翻转的十六进制串
var ErrInvalidHex = errors.New("invalid or empty hex string for big-endian conversion")

// ToBigEndian 去掉可选的 0x 前缀后按两字符一组倒序重组，即字节序翻转。
// 对偶数长度的串，两次调用得到原值。
func ToBigEndian(hexString string) (string, error) {
	clean := strings.TrimPrefix(hexString, "0x")
	if clean == "" || len(clean)%2 != 0 {
		return "", ErrInvalidHex
	}
	var b strings.Builder
	b.Grow(len(clean))
	for i := len(clean) - 2; i >= 0; i -= 2 {
		b.WriteString(clean[i : i+2])
	}
	return b.String(), nil
}

// FormatHash 把数值 hash 渲染为按字节空格分隔的大写十六进制串。
// 与旧工具保持一致：渲染后的前两位十六进制数字会被丢弃。
func FormatHash(hash uint64) string {
	hexString := strings.ToUpper(strconv.FormatUint(hash, 16))
	if len(hexString) > 2 {
		hexString = hexString[2:]
	} else {
		hexString = ""
	}
	if len(hexString)%2 != 0 {
		hexString = "0" + hexString
	}

	groups := make([]string, 0, len(hexString)/2)
	for i := 0; i < len(hexString); i += 2 {
		groups = append(groups, hexString[i:i+2])
	}
	return strings.Join(groups, " ")
}

// ParseHash 解析数据库中保存的 hash 文本：0x 前缀按十六进制，
// 否则先按十进制，失败再按无前缀十六进制
func ParseHash(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	return strconv.ParseUint(s, 16, 64)
}
