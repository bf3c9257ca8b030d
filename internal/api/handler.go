package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ps2cfg/internal/artifact"
	"ps2cfg/internal/converter"
	"ps2cfg/internal/gamedb"
	"ps2cfg/internal/netemu"
	"ps2cfg/internal/pkg"
	"ps2cfg/internal/report"
	"ps2cfg/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadLister 最近上传记录的来源，可以为 nil
type UploadLister interface {
	RecentUploads(ctx context.Context, limit int) ([]gamedb.UploadRecord, error)
}

// Handler 持有各接口依赖的服务
type Handler struct {
	Service   *service.PatchService
	Records   UploadLister
	Converter *converter.Runner
	Server    pkg.ServerConfig
	Log       *zap.Logger
}

const (
	defaultUploadsLimit = 20
	maxUploadsLimit     = 200
)

// statusFor 把业务错误映射到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, netemu.ErrEmptyBuffer),
		errors.Is(err, netemu.ErrBufferTooLarge),
		errors.Is(err, netemu.ErrInvalidFilter),
		errors.Is(err, service.ErrUnknownStrategy),
		errors.Is(err, artifact.ErrUnsafeName):
		return http.StatusBadRequest
	case errors.Is(err, converter.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// readUpload 读取 multipart 中的 file 字段，文件名只保留最后一级
func (h *Handler) readUpload(c *gin.Context) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, err
	}
	name := filepath.Base(fh.Filename)
	buf, err := readLimited(fh, h.Service.Config.MaxBufferBytes)
	if err != nil {
		return "", nil, err
	}
	return name, buf, nil
}

// readLimited 最多多读一个字节，超限由 CheckBuffer 判定
func readLimited(fh *multipart.FileHeader, limit int) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, int64(limit)+1)
	}
	return io.ReadAll(r)
}

// saveUpload 原始上传保存到 uploadDir，由 janitor 定期清理
func (h *Handler) saveUpload(name string, buf []byte) {
	if h.Server.UploadDir == "" {
		return
	}
	path := filepath.Join(h.Server.UploadDir, fmt.Sprintf("upload_%s_%s", uuid.NewString(), name))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		h.Log.Warn("保存原始上传失败", zap.String("path", path), zap.Error(err))
	}
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// ProcessHex POST /process-hex
func (h *Handler) ProcessHex(c *gin.Context) {
	name, buf, err := h.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Hex file is required"})
		return
	}
	strategy, err := service.ParseStrategy(c.Query("strategy"))
	if err != nil {
		h.fail(c, err, "")
		return
	}
	h.saveUpload(name, buf)
	h.Log.Info("Processing hex file", zap.String("file", name), zap.String("strategy", string(strategy)))

	res, err := h.Service.ProcessFile(c.Request.Context(), name, buf, strategy)
	if err != nil {
		h.fail(c, err, "Error processing hex file")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Hex file processing completed.",
		"downloadLink": "/download/" + res.DownloadName,
		"result":       res,
	})
}

// waitForFile 文件存在且非空才算就绪
func (h *Handler) waitForFile(ctx context.Context, path string) bool {
	attempts := h.Server.DownloadAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if st, err := os.Stat(path); err == nil && st.Size() > 0 {
			return true
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(h.Server.DownloadWait):
		}
	}
	return false
}

// Download GET /download/:fileName
func (h *Handler) Download(c *gin.Context) {
	fileName := c.Param("fileName")
	if fileName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File name not provided"})
		return
	}
	path, err := h.Service.Writer.Path(fileName)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	if !h.waitForFile(c.Request.Context(), path) {
		h.Log.Warn("File not ready", zap.String("path", path))
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is not ready"})
		return
	}
	h.Log.Info("Sending file", zap.String("path", path))
	c.FileAttachment(path, filepath.Base(path))
}

// Decode POST /api/v1/decode
func (h *Handler) Decode(c *gin.Context) {
	name, buf, err := h.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	gameID := c.DefaultPostForm("gameId", c.Query("gameId"))
	if gameID == "" {
		gameID = gamedb.GameIDFromFilename(name)
	}
	filter := c.DefaultPostForm("filter", c.Query("filter"))

	if c.Query("format") == "text" {
		sections, _, err := h.Service.Filtered(buf, filter)
		if err != nil {
			h.fail(c, err, "decode failed")
			return
		}
		c.String(http.StatusOK, report.SectionsText(h.Service.Decoder.Catalog(), sections))
		return
	}
	doc, err := h.Service.Decode(c.Request.Context(), gameID, buf, filter)
	if err != nil {
		h.fail(c, err, "decode failed")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Patches POST /api/v1/patches
func (h *Handler) Patches(c *gin.Context) {
	name, buf, err := h.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	strategy, err := service.ParseStrategy(c.DefaultPostForm("strategy", c.Query("strategy")))
	if err != nil {
		h.fail(c, err, "")
		return
	}
	entries, err := h.Service.BuildJSON(c.Request.Context(), name, buf, strategy)
	if err != nil {
		h.fail(c, err, "patch extraction failed")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// OpcodeDoc 命令表中的一项
type OpcodeDoc struct {
	Opcode      string `json:"opcode"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Layout      string `json:"layout"`
}

// Opcodes GET /api/v1/opcodes
func (h *Handler) Opcodes(c *gin.Context) {
	descs := h.Service.Decoder.Catalog().Descriptors()
	out := make([]OpcodeDoc, 0, len(descs))
	for _, d := range descs {
		out = append(out, OpcodeDoc{
			Opcode:      netemu.Hex(uint64(d.Opcode), 1),
			Name:        d.Name,
			Description: d.Description,
			Layout:      d.Layout.Kind.String(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// Game GET /api/v1/games/:gameID
func (h *Handler) Game(c *gin.Context) {
	gameID := c.Param("gameID")
	if h.Service.Lookup == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "game database not configured"})
		return
	}
	info, err := h.Service.Lookup.Lookup(c.Request.Context(), gameID)
	if err != nil {
		h.fail(c, err, "lookup failed")
		return
	}
	if !info.Resolved() {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found", "gameId": gameID})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gameId": info.GameID,
		"name":   info.Name,
		"hash":   info.FormattedHash(),
	})
}

// Convert POST /api/v1/convert
func (h *Handler) Convert(c *gin.Context) {
	if h.Converter == nil {
		h.fail(c, converter.ErrNotConfigured, "")
		return
	}
	res, err := h.Converter.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, converter.ErrNotConfigured) {
			h.fail(c, err, "")
			return
		}
		h.Log.Error("转换失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "output": res.Output})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Uploads GET /api/v1/uploads?limit=N
func (h *Handler) Uploads(c *gin.Context) {
	if h.Records == nil {
		c.JSON(http.StatusOK, []gamedb.UploadRecord{})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultUploadsLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxUploadsLimit {
		limit = maxUploadsLimit
	}
	records, err := h.Records.RecentUploads(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "list uploads failed")
		return
	}
	c.JSON(http.StatusOK, records)
}
