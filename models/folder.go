package models

// FolderOptions controls which sub-folders are created under a student folder.
type FolderOptions struct {
	WithSubjectFolders  bool
	WithCategoryFolders bool
}

// FolderProvisionResult is the aggregate returned once a provisioning run ends.
// Created + Failed + Skipped always equals Total.
type FolderProvisionResult struct {
	Success bool     `json:"success"`
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Details []string `json:"details"`
}
