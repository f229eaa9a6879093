package service

import (
	"context"
	"errors"
	"strings"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/repository"
)

type UserService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) UpdateAddress(ctx context.Context, actor domain.Actor, addr domain.ShippingAddress) error {
	if !actor.IsAuthenticated() {
		return ErrUnauthenticated
	}
	if err := validateAddress(&addr); err != nil {
		return err
	}
	return userErr(s.store.UpdateUserAddress(ctx, actor.UserID, addr))
}

func (s *UserService) UpdatePaymentMethod(ctx context.Context, actor domain.Actor, method string) error {
	if !actor.IsAuthenticated() {
		return ErrUnauthenticated
	}
	pm, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return Validation(map[string]string{"type": "invalid payment method"})
	}
	return userErr(s.store.UpdateUserPaymentMethod(ctx, actor.UserID, pm))
}

func userErr(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return NotFound("user")
	}
	return err
}

func validateAddress(a *domain.ShippingAddress) error {
	a.FullName = strings.TrimSpace(a.FullName)
	a.StreetAddress = strings.TrimSpace(a.StreetAddress)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)

	fields := map[string]string{}
	for name, v := range map[string]string{
		"fullName":      a.FullName,
		"streetAddress": a.StreetAddress,
		"city":          a.City,
		"postalCode":    a.PostalCode,
		"country":       a.Country,
	} {
		if len(v) < 3 {
			fields[name] = "must be at least 3 characters"
		}
	}
	if a.Lat != nil && (*a.Lat < -90 || *a.Lat > 90) {
		fields["lat"] = "must be between -90 and 90"
	}
	if a.Lng != nil && (*a.Lng < -180 || *a.Lng > 180) {
		fields["lng"] = "must be between -180 and 180"
	}
	if len(fields) > 0 {
		return Validation(fields)
	}
	return nil
}
