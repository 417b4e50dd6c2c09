// internal/workers/research/query-planner/prompts.go
package queryplanner

const queryWriterPrompt = `Bạn là chuyên gia tạo truy vấn tìm kiếm web. Hãy tạo tối đa %d truy vấn đa dạng để nghiên cứu câu hỏi sau.

Câu hỏi: %s
Ngày hiện tại: %s

Nguyên tắc:
- Mỗi truy vấn tập trung vào một khía cạnh khác nhau
- Ưu tiên thông tin mới nhất với câu hỏi phụ thuộc thời gian
- Không lặp lại truy vấn

Định dạng output: JSON {"query": ["truy vấn 1", "truy vấn 2"], "rationale": "lý do ngắn gọn"}`

const refinementPrompt = `Bạn là chuyên gia tạo query bổ sung. Hãy tạo tối đa %d query mới để lấp đầy khoảng trống thông tin.

Các query đã chạy:
- %s

Khoảng trống thông tin: %s
Ngày hiện tại: %s

Không lặp lại các query đã chạy.
Định dạng output: JSON {"query": ["query bổ sung 1"], "rationale": "lý do ngắn gọn"}`
