// Package archive moves project-local skills in and out of the archive area
// so that switching a skill's source never loses local customizations.
package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillmatrix/pkg/logger"
	"github.com/jingkaihe/skillmatrix/pkg/project"
	"github.com/jingkaihe/skillmatrix/pkg/skills"
)

var (
	// ErrArchiveExists is returned when archiving would overwrite an existing archive
	ErrArchiveExists = errors.New("archived copy already exists")
	// ErrLocalExists is returned when restoring would overwrite an active local skill
	ErrLocalExists = errors.New("local skill already exists")
)

// Manager archives and restores skills under a project's local skills directory
type Manager struct {
	skillsDir string
	locks     keyedMutex
}

// NewManager creates a Manager for the given project directory
func NewManager(projectDir string) *Manager {
	return &Manager{skillsDir: project.SkillsDir(projectDir)}
}

// SkillsDir returns the directory holding active local skills
func (m *Manager) SkillsDir() string { return m.skillsDir }

// ArchiveDir returns the directory holding archived skills
func (m *Manager) ArchiveDir() string {
	return filepath.Join(m.skillsDir, skills.ArchiveDirName)
}

// LocalPath returns the active location of a skill
func (m *Manager) LocalPath(id skills.SkillID) string {
	return filepath.Join(m.skillsDir, id.String())
}

// ArchivePath returns the archived location of a skill
func (m *Manager) ArchivePath(id skills.SkillID) string {
	return filepath.Join(m.ArchiveDir(), id.String())
}

// HasLocalSkill reports whether an active local copy of the skill exists
func (m *Manager) HasLocalSkill(id skills.SkillID) bool {
	return isDir(m.LocalPath(id))
}

// HasArchivedSkill reports whether an archived copy of the skill exists
func (m *Manager) HasArchivedSkill(id skills.SkillID) bool {
	return isDir(m.ArchivePath(id))
}

// ArchiveLocalSkill moves the local copy of a skill into the archive.
// It is a no-op when there is no local copy.
func (m *Manager) ArchiveLocalSkill(ctx context.Context, id skills.SkillID) error {
	unlock := m.locks.lock(id)
	defer unlock()

	log := logger.G(ctx).WithField("skill", id)

	local := m.LocalPath(id)
	if !isDir(local) {
		log.Debug("no local copy to archive")
		return nil
	}

	archived := m.ArchivePath(id)
	if exists(archived) {
		return errors.Wrapf(ErrArchiveExists, "cannot archive skill %s", id)
	}

	if err := os.MkdirAll(m.ArchiveDir(), 0o755); err != nil {
		return errors.Wrap(err, "failed to create archive directory")
	}
	if err := move(local, archived); err != nil {
		return errors.Wrapf(err, "failed to archive skill %s", id)
	}

	log.WithField("path", archived).Info("archived local skill")
	return nil
}

// RestoreArchivedSkill moves an archived skill back to its local path.
// It returns false without touching anything when no archive exists.
func (m *Manager) RestoreArchivedSkill(ctx context.Context, id skills.SkillID) (bool, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	log := logger.G(ctx).WithField("skill", id)

	archived := m.ArchivePath(id)
	if !isDir(archived) {
		log.Debug("no archived copy to restore")
		return false, nil
	}

	local := m.LocalPath(id)
	if exists(local) {
		return false, errors.Wrapf(ErrLocalExists, "cannot restore skill %s", id)
	}

	if err := move(archived, local); err != nil {
		return false, errors.Wrapf(err, "failed to restore skill %s", id)
	}

	log.WithField("path", local).Info("restored archived skill")
	return true, nil
}

// ListArchived returns the sorted IDs of all archived skills
func (m *Manager) ListArchived() ([]skills.SkillID, error) {
	entries, err := os.ReadDir(m.ArchiveDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read archive directory")
	}

	var ids []skills.SkillID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := skills.ParseSkillID(entry.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return skills.SortIDs(ids), nil
}

// move renames src to dst, copying across filesystems when a rename is not possible
func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	if err := copyDir(src, dst); err != nil {
		os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(dst, relPath)

		switch {
		case info.IsDir():
			return os.MkdirAll(destPath, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(target, destPath)
		default:
			return copyFile(path, destPath, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// keyedMutex serializes operations on the same skill
type keyedMutex struct {
	mu    sync.Mutex
	locks map[skills.SkillID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id skills.SkillID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[skills.SkillID]*refMutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &refMutex{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
