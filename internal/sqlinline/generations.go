package sqlinline

const QGenerationSchema = `--sql aa6c7f6f-1e32-4c07-8e15-b9f245f55a24
create table if not exists generation_history (
  id            uuid primary key,
  session_id    text not null,
  request_id    bigint not null,
  decoration_id text not null default '',
  category      text not null default '',
  succeeded     boolean not null,
  failure_kind  text not null default '',
  animated      boolean not null default false,
  bytes         bigint not null default 0,
  frames        integer not null default 0,
  duration_ms   bigint not null default 0,
  created_at    timestamptz not null default now()
);
create index if not exists generation_history_created_at_idx on generation_history (created_at);
`

const QGenerationInsert = `--sql 67a43df4-7cd0-496f-8660-9b9937e12c38
insert into generation_history (
  id, session_id, request_id, decoration_id, category, succeeded, failure_kind, animated, bytes, frames, duration_ms
) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`

const QGenerationSummarySince = `--sql 4078b475-e0a4-42b4-8726-24275efeef2d
select
  count(*)                                      as total,
  count(*) filter (where succeeded)             as succeeded,
  count(*) filter (where not succeeded)         as failed,
  count(*) filter (where succeeded and animated) as animated,
  coalesce(sum(bytes) filter (where succeeded), 0) as bytes
from generation_history
where created_at >= $1;
`

const QGenerationCategoriesSince = `--sql 6c644962-c61c-4bdb-8f39-7e1384fdbb58
select category, count(*) as total
from generation_history
where created_at >= $1 and succeeded
group by category
order by total desc, category asc;
`

const QGenerationPrune = `--sql d6b7fc3e-99b3-49b2-a8f4-c2d9796b4690
delete from generation_history
where created_at < $1;
`
