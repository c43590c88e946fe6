package core

import (
	"context"
	"fmt"
	"strings"

	"specimentrack/pkg/domain"
)

// ProjectInput carries the client fields for a new project. Role and sample
// type are encoded ids.
type ProjectInput struct {
	Name         string `json:"name"`
	RoleID       string `json:"role_id"`
	SampleTypeID string `json:"sample_type_id,omitempty"`
}

// CreateProject persists a new project. Only administrators may create projects.
func (s *Service) CreateProject(ctx context.Context, input ProjectInput) (ProjectView, error) {
	var view ProjectView
	err := s.run(ctx, opCreateProject, func(ctx context.Context) (string, error) {
		if !s.access.IsAdmin(ctx) {
			return "", fmt.Errorf("create project: %w", domain.ErrAccessDenied)
		}
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return "", fmt.Errorf("project name: %w", domain.ErrMissingParameter)
		}
		if strings.TrimSpace(input.RoleID) == "" {
			return "", fmt.Errorf("project role_id: %w", domain.ErrMissingParameter)
		}
		roleID, err := s.codec.Decode(input.RoleID)
		if err != nil {
			return "", fmt.Errorf("project role_id %q: %w", input.RoleID, domain.ErrInvalidParameter)
		}
		project := domain.Project{Name: name, RoleID: roleID}
		if input.SampleTypeID != "" {
			typeID, err := s.codec.Decode(input.SampleTypeID)
			if err != nil {
				return "", fmt.Errorf("project sample_type_id %q: %w", input.SampleTypeID, domain.ErrInvalidParameter)
			}
			project.SampleTypeID = &typeID
		}
		var created domain.Project
		if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateProject(project)
			return err
		}); err != nil {
			return "", err
		}
		view = s.projectView(created)
		return view.ID, nil
	})
	return view, err
}

// ListProjects returns the projects the caller holds a role for, ordered by id.
func (s *Service) ListProjects(ctx context.Context) ([]ProjectView, error) {
	var views []ProjectView
	err := s.run(ctx, opListProjects, func(ctx context.Context) (string, error) {
		views = make([]ProjectView, 0)
		for _, project := range s.store.ListProjects() {
			if !s.access.HasRole(ctx, project.RoleID) {
				continue
			}
			views = append(views, s.projectView(project))
		}
		return "", nil
	})
	return views, err
}

// ShowProject returns one project by encoded id.
func (s *Service) ShowProject(ctx context.Context, token string) (ProjectView, error) {
	var view ProjectView
	err := s.run(ctx, opShowProject, func(ctx context.Context) (string, error) {
		project, err := s.authorizedProject(ctx, token)
		if err != nil {
			return token, err
		}
		view = s.projectView(project)
		return token, nil
	})
	return view, err
}

// authorizedProject decodes token, loads the project and checks the caller's role.
func (s *Service) authorizedProject(ctx context.Context, token string) (domain.Project, error) {
	id, err := s.codec.Decode(token)
	if err != nil {
		return domain.Project{}, domain.NotFoundError{Entity: domain.EntityProject, ID: token}
	}
	project, ok := s.store.GetProject(id)
	if !ok {
		return domain.Project{}, domain.NotFoundError{Entity: domain.EntityProject, ID: token}
	}
	if err := s.authorize(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func (s *Service) authorize(ctx context.Context, project domain.Project) error {
	if !s.access.HasRole(ctx, project.RoleID) {
		return fmt.Errorf("project %s: %w", s.codec.Encode(project.ID), domain.ErrAccessDenied)
	}
	return nil
}
