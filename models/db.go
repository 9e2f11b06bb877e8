package models

import (
	"database/sql"
	"log"
	"os"
	"strings"
	"time"

	"BriefToVideo-server/config"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *sql.DB
var GormDB *gorm.DB

func InitDB() {
	if config.AppConfig == nil {
		log.Fatal("config.AppConfig is nil, call config.InitConfig first")
	}
	dsn := config.AppConfig.MySQL.DSN
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}

	DB = db
	GormDB, err = gorm.Open(mysql.New(mysql.Config{
		Conn: DB,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("GORM 初始化失败: %v", err)
	}

	log.Println("数据库连接成功 (Native SQL + GORM)")

	// 自动建表（读取 doc/sql/BriefToVideo.sql）
	b, err := os.ReadFile("doc/sql/BriefToVideo.sql")
	if err != nil {
		log.Printf("读取 SQL 文件失败（跳过建表）: %v", err)
		return
	}
	sqls := strings.Split(string(b), ";")
	for _, s := range sqls {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := DB.Exec(s); err != nil {
			log.Printf("执行建表语句失败: %v ; sql: %s", err, s)
		}
	}
}

// Store 聚合所有持久化操作。流水线只通过 service.ProjectStore 接口使用它
type Store struct {
	DB   *sql.DB
	Gorm *gorm.DB
}

func NewStore() *Store {
	return &Store{DB: DB, Gorm: GormDB}
}

// ============================================================================
// Project
// ============================================================================

func (s *Store) CreateProject(p *Project) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	params, err := p.Parameters.Value()
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(
		`INSERT INTO project (id, user_id, name, template, parameters, status, final_video_url, thumbnail_url, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserId, p.Name, p.Template, params, p.Status, p.FinalVideoUrl, p.ThumbnailUrl, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *Store) GetProject(id string) (Project, error) {
	var p Project
	row := s.DB.QueryRow(`SELECT id, user_id, name, template, parameters, status, final_video_url, thumbnail_url, created_at, updated_at FROM project WHERE id = ?`, id)
	var paramsBytes []byte
	if err := row.Scan(&p.ID, &p.UserId, &p.Name, &p.Template, &paramsBytes, &p.Status, &p.FinalVideoUrl, &p.ThumbnailUrl, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	if err := p.Parameters.Scan(paramsBytes); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Store) GetProjectDetail(id string) (ProjectDetail, error) {
	var d ProjectDetail
	p, err := s.GetProject(id)
	if err != nil {
		return d, err
	}
	d.Project = p
	if d.Scenes, err = s.GetScenes(id); err != nil {
		return d, err
	}
	if d.MediaFiles, err = s.GetMediaFiles(id); err != nil {
		return d, err
	}
	if d.Subtitles, err = s.GetSubtitles(id); err != nil {
		return d, err
	}
	if err = s.Gorm.Where("project_id = ?", id).Order("created_at ASC").Find(&d.Tasks).Error; err != nil {
		return d, err
	}
	return d, nil
}

func (s *Store) ListProjectsByUser(userID string) ([]Project, error) {
	rows, err := s.DB.Query(`SELECT id, user_id, name, template, parameters, status, final_video_url, thumbnail_url, created_at, updated_at FROM project WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Project
	for rows.Next() {
		var p Project
		var paramsBytes []byte
		if err := rows.Scan(&p.ID, &p.UserId, &p.Name, &p.Template, &paramsBytes, &p.Status, &p.FinalVideoUrl, &p.ThumbnailUrl, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if err := p.Parameters.Scan(paramsBytes); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// AdvanceStatus 只向前推进项目状态，倒退的更新直接落空（0 行受影响，不报错）
func (s *Store) AdvanceStatus(id, status string) error {
	lower := lowerStatuses(status)
	if len(lower) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(lower)), ",")
	args := []interface{}{status, time.Now()}
	for _, st := range lower {
		args = append(args, st)
	}
	args = append(args, id)
	_, err := s.DB.Exec(`UPDATE project SET status = ?, updated_at = ? WHERE status IN (`+placeholders+`) AND id = ?`, args...)
	return err
}

// SetFinalVideo 成片地址只随 final_assembly 完成写入，同时把状态推到 ready
func (s *Store) SetFinalVideo(id, url string) error {
	if _, err := s.DB.Exec(`UPDATE project SET final_video_url = ?, updated_at = ? WHERE id = ?`, url, time.Now(), id); err != nil {
		return err
	}
	return s.AdvanceStatus(id, ProjectStatusReady)
}

// UpdateMusicURL 把混音后的音频地址写回 parameters JSON 列
func (s *Store) UpdateMusicURL(id, url string) error {
	p, err := s.GetProject(id)
	if err != nil {
		return err
	}
	p.Parameters.Music.URL = url
	params, err := p.Parameters.Value()
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(`UPDATE project SET parameters = ?, updated_at = ? WHERE id = ?`, params, time.Now(), id)
	return err
}

func (s *Store) DeleteProject(id string) error {
	// 级联删除子表内容
	for _, q := range []string{
		`DELETE FROM task WHERE project_id = ?`,
		`DELETE FROM subtitle WHERE project_id = ?`,
		`DELETE FROM media_file WHERE project_id = ?`,
		`DELETE FROM scene WHERE project_id = ?`,
		`DELETE FROM project WHERE id = ?`,
	} {
		if _, err := s.DB.Exec(q, id); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Scene
// ============================================================================

// ReplaceScenes 整体替换项目剧本（剧本重新生成时旧场景全部作废）
func (s *Store) ReplaceScenes(projectID string, scenes []Scene) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM scene WHERE project_id = ?`, projectID); err != nil {
		tx.Rollback()
		return err
	}
	for i := range scenes {
		sc := &scenes[i]
		sc.ProjectId = projectID
		sc.CreatedAt = time.Now()
		if _, err := tx.Exec(
			`INSERT INTO scene (id, project_id, scene_index, prompt, duration, subtitle, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sc.ID, sc.ProjectId, sc.SceneIndex, sc.Prompt, sc.Duration, sc.Subtitle, sc.CreatedAt,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetScenes(projectID string) ([]Scene, error) {
	rows, err := s.DB.Query(`SELECT id, project_id, scene_index, prompt, duration, subtitle, created_at FROM scene WHERE project_id = ? ORDER BY scene_index ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Scene
	for rows.Next() {
		var sc Scene
		if err := rows.Scan(&sc.ID, &sc.ProjectId, &sc.SceneIndex, &sc.Prompt, &sc.Duration, &sc.Subtitle, &sc.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, sc)
	}
	return res, rows.Err()
}

func (s *Store) GetScene(projectID string, sceneIndex int) (Scene, error) {
	var sc Scene
	row := s.DB.QueryRow(`SELECT id, project_id, scene_index, prompt, duration, subtitle, created_at FROM scene WHERE project_id = ? AND scene_index = ?`, projectID, sceneIndex)
	err := row.Scan(&sc.ID, &sc.ProjectId, &sc.SceneIndex, &sc.Prompt, &sc.Duration, &sc.Subtitle, &sc.CreatedAt)
	return sc, err
}

func (s *Store) UpdateScenePrompt(projectID string, sceneIndex int, prompt string) error {
	_, err := s.DB.Exec(`UPDATE scene SET prompt = ? WHERE project_id = ? AND scene_index = ?`, prompt, projectID, sceneIndex)
	return err
}

// ============================================================================
// MediaFile / Subtitle
// ============================================================================

// UpsertMediaFile 按 (project_id, type, scene_index) 唯一键去重写入；
// 场景重生成竞态下的重复写入只会覆盖 url/duration，不会产生重复条目
func (s *Store) UpsertMediaFile(mf MediaFile) error {
	mf.CreatedAt = time.Now()
	_, err := s.DB.Exec(
		`INSERT INTO media_file (id, project_id, type, url, duration, scene_index, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE url = VALUES(url), duration = VALUES(duration)`,
		mf.ID, mf.ProjectId, mf.Type, mf.Url, mf.Duration, mf.SceneIndex, mf.CreatedAt,
	)
	return err
}

func (s *Store) GetMediaFiles(projectID string) ([]MediaFile, error) {
	rows, err := s.DB.Query(`SELECT id, project_id, type, url, duration, scene_index, created_at FROM media_file WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []MediaFile
	for rows.Next() {
		var mf MediaFile
		var sceneIndex sql.NullInt64
		if err := rows.Scan(&mf.ID, &mf.ProjectId, &mf.Type, &mf.Url, &mf.Duration, &sceneIndex, &mf.CreatedAt); err != nil {
			return nil, err
		}
		if sceneIndex.Valid {
			idx := int(sceneIndex.Int64)
			mf.SceneIndex = &idx
		}
		res = append(res, mf)
	}
	return res, rows.Err()
}

// DeleteSceneVideo 场景重生成前移除旧的视频条目
func (s *Store) DeleteSceneVideo(projectID string, sceneIndex int) error {
	_, err := s.DB.Exec(`DELETE FROM media_file WHERE project_id = ? AND type = ? AND scene_index = ?`, projectID, MediaTypeVideo, sceneIndex)
	return err
}

func (s *Store) UpsertSubtitle(sub Subtitle) error {
	_, err := s.DB.Exec(
		`INSERT INTO subtitle (id, project_id, scene_index, text, start_time, end_time)
         VALUES (?, ?, ?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE text = VALUES(text), start_time = VALUES(start_time), end_time = VALUES(end_time)`,
		sub.ID, sub.ProjectId, sub.SceneIndex, sub.Text, sub.StartTime, sub.EndTime,
	)
	return err
}

// ReplaceSubtitles 字幕编辑接口整体覆盖
func (s *Store) ReplaceSubtitles(projectID string, subs []Subtitle) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM subtitle WHERE project_id = ?`, projectID); err != nil {
		tx.Rollback()
		return err
	}
	for _, sub := range subs {
		if _, err := tx.Exec(
			`INSERT INTO subtitle (id, project_id, scene_index, text, start_time, end_time) VALUES (?, ?, ?, ?, ?, ?)`,
			sub.ID, projectID, sub.SceneIndex, sub.Text, sub.StartTime, sub.EndTime,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetSubtitles(projectID string) ([]Subtitle, error) {
	rows, err := s.DB.Query(`SELECT id, project_id, scene_index, text, start_time, end_time FROM subtitle WHERE project_id = ? ORDER BY scene_index ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Subtitle
	for rows.Next() {
		var sub Subtitle
		if err := rows.Scan(&sub.ID, &sub.ProjectId, &sub.SceneIndex, &sub.Text, &sub.StartTime, &sub.EndTime); err != nil {
			return nil, err
		}
		res = append(res, sub)
	}
	return res, rows.Err()
}

// ============================================================================
// Task（GORM 路径）
// ============================================================================

func (s *Store) CreateTask(t *Task) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	return s.Gorm.Create(t).Error
}

func (s *Store) GetTask(projectID, taskID string) (Task, error) {
	var t Task
	err := s.Gorm.First(&t, "id = ? AND project_id = ?", taskID, projectID).Error
	if err == gorm.ErrRecordNotFound {
		return t, ErrTaskNotFound
	}
	return t, err
}

func (s *Store) GetTaskByID(taskID string) (Task, error) {
	var t Task
	err := s.Gorm.First(&t, "id = ?", taskID).Error
	if err == gorm.ErrRecordNotFound {
		return t, ErrTaskNotFound
	}
	return t, err
}

// UpdateTask 读取-校验-写回。终态记录返回 ErrTaskFinalized，
// 记录不存在返回 ErrTaskNotFound（不再静默落空）
func (s *Store) UpdateTask(projectID, taskID, status string, progress int, result *TaskResult, errMsg string) error {
	t, err := s.GetTask(projectID, taskID)
	if err != nil {
		return err
	}
	if err := ApplyStatusChange(&t, status, progress, result, errMsg); err != nil {
		return err
	}
	updates := map[string]interface{}{
		"status":     t.Status,
		"progress":   t.Progress,
		"result":     t.Result,
		"error":      t.Error,
		"updated_at": t.UpdatedAt,
	}
	if t.CompletedAt != nil {
		updates["completed_at"] = *t.CompletedAt
	}
	// WHERE 再带一次终态条件，避免并发写入越过上面的读取检查
	return s.Gorm.Model(&Task{}).
		Where("id = ? AND project_id = ? AND status NOT IN ?", taskID, projectID, []string{TaskStatusCompleted, TaskStatusFailed}).
		Updates(updates).Error
}
