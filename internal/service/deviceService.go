package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	repository "busalarm/internal/database/postgres"
	"busalarm/internal/entity"

	"github.com/sirupsen/logrus"
)

type deviceService struct {
	tokens repository.DeviceTokenRepository
}

func NewDeviceService(tokens repository.DeviceTokenRepository) DeviceService {
	return &deviceService{tokens: tokens}
}

func (s *deviceService) Register(ctx context.Context, userID int64, req *entity.RegisterDeviceRequest) error {
	if err := s.tokens.Upsert(ctx, userID, req.Token, req.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"platform": req.Platform,
	}).Info("Device token registered")

	return nil
}

func (s *deviceService) Remove(ctx context.Context, userID int64, token string) error {
	if token == "" {
		return entity.ErrInvalidInput
	}

	err := s.tokens.Deactivate(ctx, userID, token)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.ErrDeviceTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove device: %w", err)
	}
	return nil
}
