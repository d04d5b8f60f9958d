package fleet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"carhire/internal/app/commands"
	"carhire/internal/app/dto"
	"carhire/internal/app/outbox"
	domainfleet "carhire/internal/domain/fleet"
)

const uploadPhotoKey = "fleet.photos.upload"

var ErrPhotoStorageUnavailable = errors.New("fleet: photo storage unavailable")

// PhotoUploader stores binary content and returns its public URL.
type PhotoUploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

type UploadPhotoCommand struct {
	CarID       string `validate:"required"`
	Filename    string
	ContentType string
	Reader      io.Reader
}

func (c UploadPhotoCommand) Key() string { return uploadPhotoKey }

type UploadPhotoHandler struct {
	Logger   *slog.Logger
	Uploader PhotoUploader
	Recorder outbox.Recorder
	Now      func() time.Time
}

func (h *UploadPhotoHandler) Handle(ctx context.Context, cmd UploadPhotoCommand) (*dto.Car, error) {
	if h.Uploader == nil {
		return nil, ErrPhotoStorageUnavailable
	}
	if cmd.Reader == nil {
		return nil, errors.New("photo reader is required")
	}
	key := ObjectKey(cmd.CarID, cmd.Filename)
	car, err := carMutation(ctx, h.Recorder, cmd.CarID, func(car *domainfleet.Car) error {
		publicURL, err := h.Uploader.Upload(ctx, key, cmd.Reader, cmd.ContentType)
		if err != nil {
			return fmt.Errorf("upload photo: %w", err)
		}
		return car.SetPhoto(publicURL, now(h.Now))
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("car photo uploaded", "car_id", car.ID, "object_key", key)
	}
	out := dto.MapCar(car)
	return &out, nil
}

// ObjectKey builds cars/<id>/<random><ext>, keeping the original extension.
func ObjectKey(carID, filename string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	return "cars/" + carID + "/" + uuid.NewString() + ext
}

var _ commands.Handler[UploadPhotoCommand, *dto.Car] = (*UploadPhotoHandler)(nil)
