package view

import (
	"ugly/models"
	"ugly/status"
	"ugly/store"
)

// Row is one rendered feed. Unsubscribe is bound to this row's feed.
type Row struct {
	Feed        models.Feed
	Pending     bool
	Unsubscribe func() bool
}

// Container is the feed list region. Render replaces whatever it showed.
type Container interface {
	Render(rows []Row)
}

type Unsubscriber interface {
	Unsubscribe(feed models.Feed) bool
	Pending(feedId int64) bool
	SubscribePending(listener func(feedId int64, pending bool)) func()
}

// ListView re-renders every row of the collection whenever it or the
// pending state of a row changes.
type ListView struct {
	collection   *store.Collection
	unsubscriber Unsubscriber
	container    Container
	releases     []func()
}

func NewListView(collection *store.Collection, unsubscriber Unsubscriber, container Container) *ListView {
	v := &ListView{
		collection:   collection,
		unsubscriber: unsubscriber,
		container:    container,
	}
	v.releases = []func(){
		collection.Subscribe(func(models.CollectionEvent) {
			v.Render()
		}),
		unsubscriber.SubscribePending(func(feedId int64, pending bool) {
			// A removed feed has no row left to update
			if _, ok := v.collection.Get(feedId); ok {
				v.Render()
			}
		}),
	}
	return v
}

func (v *ListView) Render() {
	feeds := v.collection.Feeds()
	rows := make([]Row, 0, len(feeds))
	for _, feed := range feeds {
		feed := feed
		rows = append(rows, Row{
			Feed:    feed,
			Pending: v.unsubscriber.Pending(feed.Id),
			Unsubscribe: func() bool {
				return v.unsubscriber.Unsubscribe(feed)
			},
		})
	}
	v.container.Render(rows)
}

// Close stops listening to the collection and to pending changes.
func (v *ListView) Close() {
	for _, release := range v.releases {
		release()
	}
	v.releases = nil
}

// BannerRegion is the status/error banner pair
type BannerRegion interface {
	ShowStatus(text string)
	ShowError(text string)
	Hide()
}

// Banner mirrors a status channel onto a banner region.
type Banner struct {
	release func()
}

func NewBanner(channel *status.Channel, region BannerRegion) *Banner {
	return &Banner{
		release: channel.Subscribe(func(message status.Message) {
			switch message.Kind {
			case status.KindStatus:
				region.ShowStatus(message.Text)
			case status.KindError:
				region.ShowError(message.Text)
			default:
				region.Hide()
			}
		}),
	}
}

func (b *Banner) Close() {
	if b.release != nil {
		b.release()
		b.release = nil
	}
}
