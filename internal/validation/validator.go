package validation

import (
	"regexp"
	"strings"

	"github.com/doi-comments-api/internal/models"
)

// doiRegex is the DOI grammar: "10.", a 4-9 digit registrant code, a slash and
// a suffix of permitted characters.
var doiRegex = regexp.MustCompile(`^10\.\d{4,9}/[-._;()/:A-Za-z0-9]+$`)

// ValidateDOI checks the DOI grammar
func ValidateDOI(candidate string) error {
	if candidate == "" {
		return &models.Error{
			Kind:    models.KindInvalidDOI,
			Field:   "doi",
			Message: "doi is required",
		}
	}
	if !doiRegex.MatchString(candidate) {
		return &models.Error{
			Kind:    models.KindInvalidDOI,
			Field:   "doi",
			Message: "invalid DOI format, must follow '10.xxxx/xxxxx'",
			Value:   candidate,
		}
	}
	return nil
}

// ValidateCommentPayload checks the comment body. userName is never rejected.
func ValidateCommentPayload(userName, text string) error {
	if strings.TrimSpace(text) == "" {
		return &models.Error{
			Kind:    models.KindEmptyComment,
			Field:   "text",
			Message: "comment text must not be empty",
		}
	}
	return nil
}

// NormalizeUserName returns the display name to persist
func NormalizeUserName(userName string) string {
	if strings.TrimSpace(userName) == "" {
		return models.DefaultUserName
	}
	return userName
}

// ValidateComment validates a submission and returns it ready for the store,
// with the display name normalized.
func ValidateComment(req *models.AddCommentRequest) (*models.AddCommentRequest, error) {
	if err := ValidateDOI(req.DOI); err != nil {
		return nil, err
	}
	if err := ValidateCommentPayload(req.UserName, req.Text); err != nil {
		return nil, err
	}
	return &models.AddCommentRequest{
		DOI:      req.DOI,
		UserName: NormalizeUserName(req.UserName),
		Text:     req.Text,
	}, nil
}
