package apiv1

import (
	"html/template"
	"net/http"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/usecase"
)

var returnPage = template.Must(template.New("return").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .wait{color:#8a6d00} .fail{color:#b00020}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
.small{font-size:12px;color:#666}
</style>
{{if .Awaiting}}<meta http-equiv="refresh" content="10" />{{end}}
</head>
<body>
<div class="card">
  <h2 class="{{.Class}}">{{.Title}}</h2>
  <p>{{.Msg}}</p>
  {{if .OrderID}}<div class="small">Order {{.OrderID}}</div>{{end}}
  {{if .HomeURL}}<a class="btn" href="{{.HomeURL}}">Back to Zeyera</a>{{end}}
</div>
</body>
</html>`))

func (s *Server) renderReturn(w http.ResponseWriter, code int, v *usecase.ReturnView) {
	title, class := "Payment Result", "fail"
	switch {
	case v.Purchase != nil && v.Purchase.Status == model.PurchaseStatusCompleted:
		title, class = "Payment Successful", "ok"
	case v.Awaiting:
		title, class = "Confirming Payment", "wait"
	case v.Purchase != nil && v.Purchase.Status == model.PurchaseStatusFailed:
		title = "Payment Cancelled"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = returnPage.Execute(w, struct {
		Title    string
		Class    string
		Msg      string
		OrderID  string
		HomeURL  string
		Awaiting bool
	}{
		Title:    title,
		Class:    class,
		Msg:      v.Message,
		OrderID:  v.OrderID,
		HomeURL:  s.homeURL,
		Awaiting: v.Awaiting,
	})
}
