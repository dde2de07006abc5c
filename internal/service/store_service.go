package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/datamodels/store"
)

var (
	ErrAlreadyHasStore    = errors.New("该用户已拥有店铺")
	ErrApplicationHandled = errors.New("申请已处理过")
	ErrStoreNotFound      = errors.New("店铺不存在")
)

// StoreService 店铺：入驻申请审批、店铺维护、店铺评价
type StoreService struct {
	stores store.Repository
}

func NewStoreService(stores store.Repository) *StoreService {
	return &StoreService{stores: stores}
}

// slugify 简单 slug：小写加连字符
func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), "-")
	return s
}

// Apply 提交开店申请，已有店铺的用户不能重复申请
func (s *StoreService) Apply(ctx context.Context, a *store.Application) error {
	if _, err := s.stores.GetByOwner(ctx, a.UserID); err == nil {
		return ErrAlreadyHasStore
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	a.Status = store.ApplicationPending
	return s.stores.CreateApplication(ctx, a)
}

// Approve 审批通过：创建店铺并激活
func (s *StoreService) Approve(ctx context.Context, applicationID, adminID int64, notes string) (*store.Store, error) {
	a, err := s.stores.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if a.Status != store.ApplicationPending {
		return nil, ErrApplicationHandled
	}

	now := time.Now()
	st := &store.Store{
		OwnerID:     a.UserID,
		Name:        a.StoreName,
		Slug:        slugify(a.StoreName),
		Description: a.Description,
		Status:      store.StatusActive,
		Email:       a.ContactEmail,
		Phone:       a.ContactPhone,
		Address:     a.Address,
		PayoutPhone: a.ContactPhone,
		ApprovedAt:  &now,
	}
	if err := s.stores.Create(ctx, st); err != nil {
		return nil, err
	}

	a.Status = store.ApplicationApproved
	a.AdminNotes = notes
	a.ReviewedBy = &adminID
	a.ReviewedAt = &now
	if err := s.stores.UpdateApplication(ctx, a); err != nil {
		return nil, err
	}
	return st, nil
}

// Reject 驳回申请
func (s *StoreService) Reject(ctx context.Context, applicationID, adminID int64, reason string) error {
	a, err := s.stores.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	if a.Status != store.ApplicationPending {
		return ErrApplicationHandled
	}
	now := time.Now()
	a.Status = store.ApplicationRejected
	a.RejectionReason = reason
	a.ReviewedBy = &adminID
	a.ReviewedAt = &now
	return s.stores.UpdateApplication(ctx, a)
}

// Suspend 封禁店铺
func (s *StoreService) Suspend(ctx context.Context, storeID int64) error {
	st, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return ErrStoreNotFound
	}
	st.Status = store.StatusSuspended
	return s.stores.Update(ctx, st)
}

// Reactivate 解封店铺
func (s *StoreService) Reactivate(ctx context.Context, storeID int64) error {
	st, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return ErrStoreNotFound
	}
	st.Status = store.StatusActive
	return s.stores.Update(ctx, st)
}

// Review 店铺评价，每人一条，写入后重算评分聚合
func (s *StoreService) Review(ctx context.Context, storeID, userID int64, rating int, title, comment string) (*store.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrBadRating
	}
	if _, err := s.stores.GetReviewByStoreAndUser(ctx, storeID, userID); err == nil {
		return nil, ErrAlreadyReviewed
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rv := &store.Review{
		StoreID: storeID,
		UserID:  userID,
		Rating:  rating,
		Title:   title,
		Comment: comment,
	}
	if err := s.stores.CreateReview(ctx, rv); err != nil {
		return nil, err
	}
	if err := s.stores.RefreshRating(ctx, storeID); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *StoreService) GetByID(ctx context.Context, id int64) (*store.Store, error) {
	return s.stores.GetByID(ctx, id)
}

func (s *StoreService) GetByOwner(ctx context.Context, ownerID int64) (*store.Store, error) {
	return s.stores.GetByOwner(ctx, ownerID)
}

func (s *StoreService) GetBySlug(ctx context.Context, slug string) (*store.Store, error) {
	return s.stores.GetBySlug(ctx, slug)
}

func (s *StoreService) ListActive(ctx context.Context) ([]*store.Store, error) {
	return s.stores.ListActive(ctx)
}

func (s *StoreService) ListAll(ctx context.Context) ([]*store.Store, error) {
	return s.stores.ListAll(ctx)
}

func (s *StoreService) Update(ctx context.Context, st *store.Store) error {
	return s.stores.Update(ctx, st)
}

func (s *StoreService) ListApplications(ctx context.Context, status int) ([]*store.Application, error) {
	return s.stores.ListApplications(ctx, status)
}

func (s *StoreService) ListReviews(ctx context.Context, storeID int64) ([]*store.Review, error) {
	return s.stores.ListReviews(ctx, storeID)
}
