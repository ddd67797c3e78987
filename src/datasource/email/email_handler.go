// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"TripReport/src/storage"
)

// ====================== 邮件处理器实现 ======================

// DatasetAttachmentHandler 把目标邮件中的行程数据附件保存到数据目录
type DatasetAttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	logger        *storage.Logger
	mu            sync.RWMutex // 保护processedUIDs的读写锁
}

func NewDatasetAttachmentHandler(subject, dataDir string, logger *storage.Logger) *DatasetAttachmentHandler {
	return &DatasetAttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		processedUIDs: make(map[uint32]bool),
		logger:        logger,
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *DatasetAttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理（线程安全）
func (h *DatasetAttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存邮件中最后一个数据附件，返回保存路径
// 已处理或不匹配的邮件返回空路径
func (h *DatasetAttachmentHandler) Handle(email *Email) (string, error) {
	if h.IsProcessed(email.UID) {
		return "", nil
	}

	if !strings.Contains(email.Subject, h.TargetSubject) {
		h.logger.Debug(fmt.Sprintf("跳过主题不匹配的邮件: %s", email.Subject))
		return "", nil
	}

	h.logger.WithFields(map[string]interface{}{
		"subject": email.Subject,
		"from":    email.From,
		"date":    email.Date.Format("2006-01-02 15:04:05"),
	}).Info("处理邮件")

	attachments := email.DatasetAttachments()
	if len(attachments) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	var saved string
	for _, attachment := range attachments {
		// 附件名只取文件名部分
		filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return "", fmt.Errorf("保存附件失败: %w", err)
		}
		h.logger.Info(fmt.Sprintf("附件已保存到: %s", filePath))
		saved = filePath
	}

	h.markAsProcessed(email.UID)
	return saved, nil
}
