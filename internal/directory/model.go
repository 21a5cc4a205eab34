package directory

// 社員台帳。上長・代理人の関係は id キーの導出クエリとしてのみ扱い、
// オブジェクト側に相互参照は持たせない。
type User struct {
	UserID           string
	EmployeeNumber   string
	DisplayName      string
	ManagerID        *string
	IsAdmin          bool
	DailyWorkMinutes *int // 未設定ならシステムデフォルト
	IsDisabled       bool
}

type UserResponse struct {
	UserID           string  `json:"user_id"`
	EmployeeNumber   string  `json:"employee_number"`
	DisplayName      string  `json:"display_name"`
	ManagerID        *string `json:"manager_id,omitempty"`
	IsAdmin          bool    `json:"is_admin"`
	DailyWorkMinutes *int    `json:"daily_work_minutes,omitempty"`
}

func (u User) toDTO() UserResponse {
	return UserResponse{
		UserID:           u.UserID,
		EmployeeNumber:   u.EmployeeNumber,
		DisplayName:      u.DisplayName,
		ManagerID:        u.ManagerID,
		IsAdmin:          u.IsAdmin,
		DailyWorkMinutes: u.DailyWorkMinutes,
	}
}

type RegisterSubstituteRequest struct {
	ManagerID    string `json:"manager_id" binding:"required"`
	SubstituteID string `json:"substitute_id" binding:"required"`
}
