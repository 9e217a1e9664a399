package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/cppla/smartreader/models"
)

// Contact is what the engine needs to address a user by mail.
type Contact struct {
	Email    string
	Username string
}

// Directory answers existence questions about users and articles.
type Directory struct {
	db *gorm.DB
}

// NewDirectory creates a Directory.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// UserExists reports whether a live user row has the id.
func (d *Directory) UserExists(ctx context.Context, userID uint) (bool, error) {
	return d.exists(ctx, &models.User{}, "id = ?", userID)
}

// ArticleExists reports whether a published article has the id.
func (d *Directory) ArticleExists(ctx context.Context, articleID uint) (bool, error) {
	return d.exists(ctx, &models.Article{}, "id = ? AND is_published = ?", articleID, true)
}

// EmailRegistered reports whether a live account already uses the address.
func (d *Directory) EmailRegistered(ctx context.Context, email string) (bool, error) {
	return d.exists(ctx, &models.User{}, "email = ?", email)
}

// Contact returns the mail address and display name of a user.
func (d *Directory) Contact(ctx context.Context, userID uint) (Contact, error) {
	var u models.User
	if err := d.db.WithContext(ctx).Select("email", "username").First(&u, userID).Error; err != nil {
		return Contact{}, notFound(err)
	}
	return Contact{Email: u.Email, Username: u.Username}, nil
}

func (d *Directory) exists(ctx context.Context, model interface{}, query string, args ...interface{}) (bool, error) {
	var n int64
	if err := d.db.WithContext(ctx).Model(model).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
