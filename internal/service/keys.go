package service

// 状态缓存里的 key
func StatusKey(jobID string) string { return "job_status:" + jobID }
func ResultKey(jobID string) string { return "job_result:" + jobID }
func ErrorKey(jobID string) string  { return "job_error:" + jobID }

func ErrorCodeKey(jobID string) string { return "job_error_code:" + jobID }
