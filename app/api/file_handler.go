package api

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"auticare/types"

	"github.com/gofiber/fiber/v2"
)

var uploadTypes = map[string]bool{".pdf": true, ".txt": true, ".md": true, ".csv": true}

// FileHandler drops uploaded documents into the loader source directory.
// The loader service picks them up from there.
type FileHandler struct {
	SourceDir string
}

func NewFileHandler(sourceDir string) *FileHandler {
	return &FileHandler{
		SourceDir: sourceDir,
	}
}

func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	if h.SourceDir == "" {
		return ErrUnavailable("knowledge upload")
	}
	file, err := c.FormFile("file")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "file field is required")
	}
	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		return NewError(fiber.StatusBadRequest, "invalid file name")
	}
	if !uploadTypes[strings.ToLower(filepath.Ext(name))] {
		return NewError(fiber.StatusBadRequest, "unsupported file type")
	}
	if err := os.MkdirAll(h.SourceDir, 0o755); err != nil {
		return err
	}

	// Written under a dot name so the watcher skips it until the rename.
	final := filepath.Join(h.SourceDir, name)
	partial := filepath.Join(h.SourceDir, "."+name+".part")
	if err := c.SaveFile(file, partial); err != nil {
		return err
	}
	if err := os.Rename(partial, final); err != nil {
		os.Remove(partial)
		return err
	}
	log.Printf("[UPLOAD] file saved to: %s", final)

	return c.JSON(types.MessageResponse{Success: true, Message: "File queued for ingestion: " + name})
}
