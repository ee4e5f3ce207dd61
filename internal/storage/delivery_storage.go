package storage

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"golang.org/x/crypto/blake2b"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// Сколько байт нужно filetype для определения типа по сигнатуре.
const sniffLen = 262

// Delivery описывает сохранённый файл результата работы.
type Delivery struct {
	Ref      string `json:"ref"`
	Name     string `json:"name"`
	MIME     string `json:"mime"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"` // BLAKE2b-256 содержимого, hex

}

// DeliveryStorage хранит файлы результатов работы по заказам.
type DeliveryStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewDeliveryStorage создаёт файловое хранилище.
func NewDeliveryStorage(rootPath string, maxUploadMB int64) (*DeliveryStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &DeliveryStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save проверяет тип файла по содержимому и сохраняет его в каталог заказа.
func (s *DeliveryStorage) Save(ctx context.Context, orderID uuid.UUID, originalName string, r io.Reader) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return Delivery{}, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	mime, err := detectMIME(head)
	if err != nil {
		return Delivery{}, err
	}

	safeName := sanitizeFilename(originalName)
	fileName := fmt.Sprintf("%d_%s", time.Now().UnixNano(), safeName)

	orderDir := filepath.Join(s.rootPath, orderID.String())
	if err := os.MkdirAll(orderDir, 0o755); err != nil {
		return Delivery{}, fmt.Errorf("storage: не удалось создать каталог заказа: %w", err)
	}

	targetPath := filepath.Join(orderDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return Delivery{}, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		_ = os.Remove(tempPath)
		return Delivery{}, fmt.Errorf("storage: blake2b: %w", err)
	}
	limitedReader := io.LimitedReader{R: br, N: s.maxUploadBytes + 1}
	written, err := io.Copy(io.MultiWriter(f, hasher), &limitedReader)
	if err != nil {
		_ = os.Remove(tempPath)
		return Delivery{}, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return Delivery{}, apperror.Newf(apperror.ErrCodeValidation, "размер файла превышает лимит %d байт", s.maxUploadBytes)
	}

	if err := f.Close(); err != nil {
		return Delivery{}, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return Delivery{}, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return Delivery{
		Ref:      filepath.ToSlash(filepath.Join(orderID.String(), fileName)),
		Name:     safeName,
		MIME:     mime,
		Size:     written,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает ранее сохранённый файл по ссылке.
func (s *DeliveryStorage) Open(ctx context.Context, ref string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректная ссылка на файл")
	}
	f, err := os.Open(filepath.Join(s.rootPath, clean))
	if os.IsNotExist(err) {
		return nil, apperror.New(apperror.ErrCodeNotFound, "файл не найден")
	}
	return f, err
}

// Delete удаляет файл из хранилища.
func (s *DeliveryStorage) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, filepath.Clean(filepath.FromSlash(ref)))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// detectMIME принимает изображения, документы, архивы, видео и аудио.
func detectMIME(head []byte) (string, error) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", apperror.New(apperror.ErrCodeValidation, "не удалось определить тип файла")
	}
	switch {
	case filetype.IsImage(head), filetype.IsDocument(head), filetype.IsArchive(head),
		filetype.IsVideo(head), filetype.IsAudio(head):
		return kind.MIME.Value, nil
	}
	return "", apperror.Newf(apperror.ErrCodeValidation, "неподдерживаемый тип файла (%s)", kind.MIME.Value)
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		name = "delivery"
	}
	return name
}
