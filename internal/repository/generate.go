package repository

import (
	"fmt"
	"os"

	"gorm.io/gen"

	"CoParent/internal/model"
	"CoParent/pkg/errors"
	"CoParent/storage/database"
)

// 查询接口只覆盖存储实际用到的读取：GormSessionStore.Get 与 GormAccounts 的按邮箱查找

// OnboardingSessionQuerier 引导会话查询接口
type OnboardingSessionQuerier interface {
	// GetBySessionID 根据 session_id 查询会话
	//
	// SELECT * FROM @@table WHERE session_id = @sessionID AND deleted_at IS NULL LIMIT 1
	GetBySessionID(sessionID string) (*gen.T, error)
}

// UserQuerier 用户查询接口
type UserQuerier interface {
	// GetByEmail 根据邮箱查询用户
	//
	// SELECT * FROM @@table WHERE email = @email AND deleted_at IS NULL LIMIT 1
	GetByEmail(email string) (*gen.T, error)
}

func Generate() error {
	if err := database.Init(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	db := database.DB()
	if db == nil {
		return errors.ErrDatabaseConnectionNil
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:           "./internal/repository/query", // 生成代码的输出路径
		ModelPkgPath:      "CoParent/internal/model",
		Mode:              gen.WithDefaultQuery | gen.WithQueryInterface,
		FieldNullable:     true,
		FieldCoverable:    false,
		FieldSignable:     false,
		FieldWithIndexTag: false,
		FieldWithTypeTag:  true,
	})

	g.UseDB(db)

	g.ApplyBasic(
		&model.OnboardingSession{},
		&model.User{},
		&model.Profile{},
	)

	g.ApplyInterface(func(OnboardingSessionQuerier) {}, &model.OnboardingSession{})
	g.ApplyInterface(func(UserQuerier) {}, &model.User{})

	g.Execute()

	return nil
}

func RunGenerate() {
	if err := Generate(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate code: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Code generation completed successfully!")
}
